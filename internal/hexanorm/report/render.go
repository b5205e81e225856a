package report

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatText, nil
	case FormatText, FormatJSON, FormatYAML:
		return f, nil
	case "yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("unknown report format %q (want text, json or yaml)", s)
}

// Render writes r in the given format. It is a pure function of the report value.
func Render(w io.Writer, r *Report, f Format) error {
	switch f {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return err
		}
		return enc.Close()
	case FormatText, "":
		return renderText(w, r)
	}
	return fmt.Errorf("unknown report format %q", f)
}

func renderText(w io.Writer, r *Report) error {
	bw := bufio.NewWriter(w)
	for _, v := range r.Violations {
		fmt.Fprintf(bw, "%s: %s (%s)\n", v.Rule, v.Message, v.Subject)
	}
	for _, e := range r.RuleErrors {
		fmt.Fprintf(bw, "%s: error: %s\n", e.Rule, e.Error)
	}
	fmt.Fprintln(bw, Summary(r))
	return bw.Flush()
}

// Summary is the last line of the text rendering.
func Summary(r *Report) string {
	if r.Status == StatusPass {
		return string(StatusPass)
	}
	return fmt.Sprintf("%s: %d violations", StatusFail, len(r.Violations))
}
