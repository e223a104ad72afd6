package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/MeKo-Tech/spreadmap/internal/assets"
)

// Credentials are the passwords tried on encrypted PDFs. Catalogue exports
// are often owner-restricted only, which opens with empty credentials.
type Credentials struct {
	UserPassword  string `mapstructure:"user_password"`
	OwnerPassword string `mapstructure:"owner_password"`
}

func (c Credentials) configuration() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.UserPW = c.UserPassword
	conf.OwnerPW = c.OwnerPassword
	return conf
}

// Decrypt removes encryption from data using pdfcpu.
func Decrypt(data []byte, creds Credentials) ([]byte, error) {
	var buf bytes.Buffer
	if err := api.Decrypt(bytes.NewReader(data), &buf, creds.configuration()); err != nil {
		return nil, fmt.Errorf("decrypt pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// Plaintext returns data decrypted when it is encrypted and unchanged
// otherwise.
func Plaintext(data []byte, creds Credentials) ([]byte, error) {
	plain, err := Decrypt(data, creds)
	if err == nil {
		return plain, nil
	}
	if strings.Contains(strings.ToLower(err.Error()), "not encrypted") {
		return data, nil
	}
	return nil, err
}

// IsPasswordError reports whether err looks like an encryption failure.
func IsPasswordError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, kw := range []string{"password", "encrypted", "decrypt", "authentication"} {
		if strings.Contains(msg, kw) {
			return true
		}
	}
	return false
}

// OpenBytes opens data for text access, decrypting it first when the
// reader rejects it as encrypted.
func OpenBytes(data []byte, creds Credentials) (Document, error) {
	doc, err := OpenText(data)
	if err == nil || !IsPasswordError(err) {
		return doc, err
	}
	plain, derr := Decrypt(data, creds)
	if derr != nil {
		return nil, errors.Join(err, derr)
	}
	return OpenText(plain)
}

// AssetOpener opens documents from an asset store. Store misses surface as
// assets.ErrAssetMissing.
func AssetOpener(store assets.Store, creds Credentials) Opener {
	return func(ctx context.Context, assetID string) (Document, error) {
		data, err := store.Get(ctx, assetID)
		if err != nil {
			return nil, err
		}
		doc, err := OpenBytes(data, creds)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", assetID, err)
		}
		return doc, nil
	}
}

// PageCount counts pages with pdfcpu, falling back to the text reader.
func PageCount(data []byte, creds Credentials) (int, error) {
	n, err := api.PageCount(bytes.NewReader(data), creds.configuration())
	if err == nil {
		return n, nil
	}
	doc, terr := OpenBytes(data, creds)
	if terr != nil {
		return 0, errors.Join(err, terr)
	}
	defer doc.Close()
	return doc.NumPages(), nil
}
