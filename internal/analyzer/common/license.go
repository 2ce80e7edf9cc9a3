package common

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/cockroachdb/errors"
)

// DefaultLicensee is the default licence detector command line.
const DefaultLicensee = "licensee detect --confidence=98 --json"

// License values that are not SPDX identifiers from the detector.
const (
	LicenseUnknown     = "unknown"
	licenseNoAssertion = "NOASSERTION"
	licenseApache2     = "Apache-2.0"
	apacheSnippet      = "the Apache License, Version 2.0"
)

type licenseeReport struct {
	MatchedFiles []struct {
		Filename       string `json:"filename"`
		Content        string `json:"content"`
		MatchedLicense string `json:"matched_license"`
		Matcher        *struct {
			Name       string  `json:"name"`
			Confidence float64 `json:"confidence"`
		} `json:"matcher"`
	} `json:"matched_files"`
}

// DetectLicense runs the licence detector on root. ok is false when no
// licence file was matched at all.
func DetectLicense(ctx context.Context, tool *Tool, root string) (license string, ok bool, err error) {
	out, err := tool.Run(ctx, root)
	if err != nil {
		return "", false, err
	}
	return parseLicensee(out)
}

// parseLicensee picks the licence with the highest confidence. Files the
// detector could not identify fall back to a check for the short Apache 2.0
// notice, and otherwise to "unknown", but never override a real match.
func parseLicensee(out []byte) (string, bool, error) {
	var report licenseeReport
	if err := json.Unmarshal(out, &report); err != nil {
		return "", false, errors.Wrap(err, "decoding licensee output")
	}

	license := ""
	confidence := 0.0
	for _, f := range report.MatchedFiles {
		if f.MatchedLicense == licenseNoAssertion || f.MatchedLicense == "" {
			if license == "" || license == LicenseUnknown {
				if strings.Contains(f.Content, apacheSnippet) {
					license = licenseApache2
				} else {
					license = LicenseUnknown
				}
			}
			continue
		}
		c := 0.0
		if f.Matcher != nil {
			c = f.Matcher.Confidence
		}
		if license == "" || license == LicenseUnknown || c > confidence {
			license, confidence = f.MatchedLicense, c
		}
	}
	return license, license != "", nil
}
