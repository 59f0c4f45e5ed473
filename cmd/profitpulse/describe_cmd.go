package main

import (
	"flag"
	"fmt"
	"io"

	"golang.org/x/text/language"

	"github.com/zicaiw625/profit-pulse-sub001/pkg/reconcile"
)

func runDescribeCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("describe", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var rulesPath, lang string
	cmd.StringVar(&rulesPath, "rules", "", "Path to rule overrides (YAML or JSON)")
	cmd.StringVar(&lang, "lang", "en", "BCP 47 language tag for number formatting")
	if err := cmd.Parse(args); err != nil {
		return exitError
	}

	tag, err := language.Parse(lang)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: invalid --lang %q\n", lang)
		return exitError
	}
	rules, err := readRules(rulesPath)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitError
	}
	for _, line := range reconcile.DescribeIn(tag, rules) {
		_, _ = fmt.Fprintln(stdout, line)
	}
	return exitOK
}
