package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tidwall/sjson"

	"github.com/dshills/termdiff/internal/renderer/backend"
	"github.com/dshills/termdiff/internal/renderer/core"
)

func newCapsCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "caps",
		Short: "Probe and print the terminal capabilities",
		Long:  "Probe $TERM, $COLORTERM and terminfo and print what the renderer will use.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			caps, err := backend.Probe()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				data, err := capsJSON(caps)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, string(data))
				return nil
			}
			printCaps(cmd, caps)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func printCaps(cmd *cobra.Command, c core.Capabilities) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "color mode:          %s\n", c.ColorMode)
	fmt.Fprintf(out, "sgr attributes:      %s\n", attrNames(c.SGRAttrsSupported))
	for _, row := range []struct {
		name string
		ok   bool
	}{
		{"mouse", c.Mouse},
		{"bracketed paste", c.BracketedPaste},
		{"focus events", c.FocusEvents},
		{"osc52", c.OSC52},
		{"sync update", c.SyncUpdate},
		{"scroll region", c.ScrollRegion},
		{"cursor shape", c.CursorShape},
		{"wait writable", c.OutputWaitWritable},
	} {
		fmt.Fprintf(out, "%-20s %t\n", row.name+":", row.ok)
	}
}

func attrNames(a core.Attribute) string {
	names := []struct {
		attr core.Attribute
		name string
	}{
		{core.AttrBold, "bold"},
		{core.AttrItalic, "italic"},
		{core.AttrUnderline, "underline"},
		{core.AttrReverse, "reverse"},
		{core.AttrDim, "dim"},
		{core.AttrStrikethrough, "strikethrough"},
		{core.AttrBlink, "blink"},
	}
	var out []string
	for _, n := range names {
		if a.Has(n.attr) {
			out = append(out, n.name)
		}
	}
	if len(out) == 0 {
		return "none"
	}
	return strings.Join(out, ",")
}

// capsJSON encodes capabilities with the host-facing key names.
func capsJSON(c core.Capabilities) ([]byte, error) {
	fields := []struct {
		key   string
		value any
	}{
		{"colorMode", uint32(c.ColorMode)},
		{"supportsMouse", c.Mouse},
		{"supportsBracketedPaste", c.BracketedPaste},
		{"supportsFocusEvents", c.FocusEvents},
		{"supportsOsc52", c.OSC52},
		{"supportsSyncUpdate", c.SyncUpdate},
		{"supportsScrollRegion", c.ScrollRegion},
		{"supportsCursorShape", c.CursorShape},
		{"supportsOutputWaitWritable", c.OutputWaitWritable},
		{"sgrAttrsSupported", uint32(c.SGRAttrsSupported)},
	}
	data := []byte("{}")
	for _, f := range fields {
		var err error
		if data, err = sjson.SetBytes(data, f.key, f.value); err != nil {
			return nil, err
		}
	}
	return data, nil
}
