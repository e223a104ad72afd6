package support

import (
	"fmt"
	"slices"
	"strings"

	"github.com/cucumber/godog"

	"github.com/MeKo-Tech/spreadmap/internal/plu"
	"github.com/MeKo-Tech/spreadmap/internal/resolver"
)

func (testCtx *TestContext) theBrandDictionaryContains(list string) error {
	testCtx.Brands = append(testCtx.Brands, splitList(list)...)
	return nil
}

func (testCtx *TestContext) iExtractFrom(text string) error {
	testCtx.LastPLUs = plu.Extract(text)
	testCtx.LastOffer = testCtx.parser().Parse(text)
	return nil
}

func (testCtx *TestContext) thePLUsShouldBe(list string) error {
	want := splitList(list)
	if !slices.Equal(testCtx.LastPLUs, want) {
		return fmt.Errorf("expected PLUs %v, got %v", want, testCtx.LastPLUs)
	}
	return nil
}

func (testCtx *TestContext) noPLUsShouldBeFound() error {
	if len(testCtx.LastPLUs) != 0 {
		return fmt.Errorf("expected no PLUs, got %v", testCtx.LastPLUs)
	}
	return nil
}

func (testCtx *TestContext) thePercentOffShouldBe(raw string, value int) error {
	p := testCtx.LastOffer.PercentOff
	if p == nil {
		return fmt.Errorf("expected percent off %q, got none", raw)
	}
	if p.Raw != raw || p.Value != value {
		return fmt.Errorf("expected percent off %q/%d, got %q/%d", raw, value, p.Raw, p.Value)
	}
	return nil
}

func (testCtx *TestContext) theBrandShouldBe(brand string) error {
	if testCtx.LastOffer.Brand != brand {
		return fmt.Errorf("expected brand %q, got %q", brand, testCtx.LastOffer.Brand)
	}
	return nil
}

func (testCtx *TestContext) theDescriptionShouldNotContain(s string) error {
	if strings.Contains(testCtx.LastOffer.Description, s) {
		return fmt.Errorf("description %q still contains %q", testCtx.LastOffer.Description, s)
	}
	return nil
}

func (testCtx *TestContext) theFilenameShouldAddress(filename string, spread int, half string, box int) error {
	addr, ok := resolver.FilenameAddressing{}.Parse(filename)
	if !ok {
		return fmt.Errorf("filename %q is not an address", filename)
	}
	if addr.Spread != spread || addr.Half != half || addr.Box != box {
		return fmt.Errorf("expected spread %d %s box %d, got %+v", spread, half, box, addr)
	}
	return nil
}

func (testCtx *TestContext) theFilenameShouldNotAddress(filename string) error {
	if addr, ok := (resolver.FilenameAddressing{}).Parse(filename); ok {
		return fmt.Errorf("expected %q to be unaddressed, got %+v", filename, addr)
	}
	return nil
}

// RegisterPLUSteps registers PLU, offer and addressing steps.
func (testCtx *TestContext) RegisterPLUSteps(sc *godog.ScenarioContext) {
	sc.Step(`^the brand dictionary contains "([^"]*)"$`, testCtx.theBrandDictionaryContains)
	sc.Step(`^I extract PLUs and offer from "([^"]*)"$`, testCtx.iExtractFrom)
	sc.Step(`^the PLUs should be "([^"]*)"$`, testCtx.thePLUsShouldBe)
	sc.Step(`^no PLUs should be found$`, testCtx.noPLUsShouldBeFound)
	sc.Step(`^the percent off should be "([^"]*)" with value (\d+)$`, testCtx.thePercentOffShouldBe)
	sc.Step(`^the brand should be "([^"]*)"$`, testCtx.theBrandShouldBe)
	sc.Step(`^the description should not contain "([^"]*)"$`, testCtx.theDescriptionShouldNotContain)
	sc.Step(`^the filename "([^"]*)" should address spread (\d+) (left|right) box (\d+)$`,
		testCtx.theFilenameShouldAddress)
	sc.Step(`^the filename "([^"]*)" should not be an address$`, testCtx.theFilenameShouldNotAddress)
}
