package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	runewidth "github.com/mattn/go-runewidth"
	"github.com/muesli/reflow/truncate"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/dgnsrekt/vox/elevenlabs"
	"github.com/dgnsrekt/vox/tts"
)

const (
	ellipsis     = "…"
	maxNameWidth = 24
)

var voicesCmd = &cobra.Command{
	Use:   "voices [QUERY]",
	Short: "List and search the available voices",
	Long: paragraph(
		fmt.Sprintf("\nList the available voices, sorted by name. Pass a %s to filter by name or id.", keyword("QUERY")),
	),
	Example: paragraph("vox voices\nvox voices rachel"),
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := elevenlabs.NewClient(apiKey)
		if err != nil {
			return err
		}
		defer client.Close()

		svc := tts.NewService(client)
		voices, err := svc.ListVoices(cmd.Context())
		if err != nil {
			return err
		}
		if len(args) == 1 {
			voices = svc.SearchVoices(args[0], voices)
		}
		if len(voices) == 0 {
			fmt.Println("No voices matched.")
			return nil
		}

		printVoices(os.Stdout, voices, terminalWidth())
		return nil
	},
}

// printVoices renders one voice per line, padded into columns and
// truncated to the terminal width.
func printVoices(w io.Writer, voices []tts.Voice, width int) {
	nameWidth := 0
	idWidth := 0
	for _, v := range voices {
		if n := runewidth.StringWidth(v.Name); n > nameWidth {
			nameWidth = n
		}
		if n := runewidth.StringWidth(v.ID); n > idWidth {
			idWidth = n
		}
	}
	if nameWidth > maxNameWidth {
		nameWidth = maxNameWidth
	}

	for _, v := range voices {
		name := runewidth.Truncate(v.Name, nameWidth, ellipsis)
		line := fmt.Sprintf("%s  %s  %s",
			runewidth.FillRight(name, nameWidth),
			subtle(runewidth.FillRight(v.ID, idWidth)),
			voiceDetails(v),
		)
		fmt.Fprintln(w, truncate.StringWithTail(line, uint(width), ellipsis)) //nolint:gosec
	}
}

// voiceDetails summarizes category and labels for the table's last column.
func voiceDetails(v tts.Voice) string {
	parts := make([]string, 0, 1+len(v.Labels))
	if v.Category != "" {
		parts = append(parts, v.Category)
	}
	keys := make([]string, 0, len(v.Labels))
	for k := range v.Labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		parts = append(parts, k+"="+v.Labels[k])
	}
	return strings.Join(parts, ", ")
}

func terminalWidth() int {
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		if w > 120 {
			w = 120
		}
		return w
	}
	return 80
}
