package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var memWriteWords []string

var memCmd = &cobra.Command{
	Use:   "mem <addr> [words]",
	Short: "Read or write target memory",
	Long: `Read words of target memory starting at a word-aligned address, or write
words there with --write. All accesses go through the debug module one word
at a time.

Examples:
  otd mem 0x80000000          # read one word
  otd mem 0x80000000 8        # read eight words
  otd mem 0x80000000 --write 0xDEADBEEF,0x00000013`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runMem,
}

func init() {
	rootCmd.AddCommand(memCmd)
	addConnectionFlags(memCmd)

	memCmd.Flags().StringSliceVar(&memWriteWords, "write", nil,
		"words to write at the address (hex, e.g. 0xDEADBEEF,0x13)")
}

func runMem(cmd *cobra.Command, args []string) error {
	addr, err := parseUint32(args[0])
	if err != nil {
		return err
	}

	tgt, cleanup, err := openTarget()
	if err != nil {
		return err
	}
	defer cleanup()

	if len(memWriteWords) > 0 {
		data := make([]byte, 0, len(memWriteWords)*4)
		for _, s := range memWriteWords {
			word, err := parseUint32(s)
			if err != nil {
				return err
			}
			data = append(data, byte(word), byte(word>>8), byte(word>>16), byte(word>>24))
		}
		if err := tgt.MemWrite(addr, data); err != nil {
			return fmt.Errorf("memory write failed: %w", err)
		}
		fmt.Printf("Wrote %d word(s) at 0x%08X\n", len(memWriteWords), addr)
	} else {
		words := uint32(1)
		if len(args) == 2 {
			if words, err = parseUint32(args[1]); err != nil {
				return err
			}
		}
		buf := make([]byte, words*4)
		if err := tgt.MemRead(addr, buf); err != nil {
			return fmt.Errorf("memory read failed: %w", err)
		}
		for i := 0; i < len(buf); i += 4 {
			word := uint32(buf[i]) | uint32(buf[i+1])<<8 |
				uint32(buf[i+2])<<16 | uint32(buf[i+3])<<24
			fmt.Printf("0x%08X: 0x%08X\n", addr+uint32(i), word)
		}
	}

	if tgt.CheckError() {
		return fmt.Errorf("transport error during memory access; values are unreliable")
	}
	return nil
}
