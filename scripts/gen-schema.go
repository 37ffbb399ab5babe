//go:build ignore

package main

import (
	"fmt"
	"os"

	"github.com/ormasoftchile/labguide/pkg/guide/schema"
)

func main() {
	if err := os.MkdirAll("schemas", 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "mkdir: %v\n", err)
		os.Exit(1)
	}

	for _, out := range []struct {
		path string
		gen  func() ([]byte, error)
	}{
		{"schemas/guide-v1.json", schema.GenerateGuideJSONSchema},
		{"schemas/plan-v1.json", schema.GeneratePlanJSONSchema},
	} {
		data, err := out.gen()
		if err != nil {
			fmt.Fprintf(os.Stderr, "error generating %s: %v\n", out.path, err)
			os.Exit(1)
		}
		if err := os.WriteFile(out.path, data, 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "write: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("wrote " + out.path)
	}
}
