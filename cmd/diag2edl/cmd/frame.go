package cmd

import (
	"bufio"
	"bytes"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTraceEDL/pkg/hdlc"
)

var frameCmd = &cobra.Command{
	Use:   "frame",
	Short: "Encode or decode DIAG HDLC frames",
	Long: `Offline helpers for the DIAG framing: byte stuffing with 0x7E/0x7D and the
16 bit frame checksum. Hex input may contain spaces or colons.

Examples:
  diag2edl frame encode 4b650100
  diag2edl frame decode "7e 4b 65 01 00 54 0f 7e"`,
}

var frameEncodeCmd = &cobra.Command{
	Use:   "encode <hex payload>",
	Short: "Frame a payload",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runFrameEncode,
}

var frameDecodeCmd = &cobra.Command{
	Use:   "decode <hex stream>",
	Short: "Extract and check every frame in a byte stream",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runFrameDecode,
}

func init() {
	rootCmd.AddCommand(frameCmd)
	frameCmd.AddCommand(frameEncodeCmd, frameDecodeCmd)

	frameCmd.Annotations = map[string]string{skipConfig: "true"}
	frameEncodeCmd.Annotations = frameCmd.Annotations
	frameDecodeCmd.Annotations = frameCmd.Annotations
}

func runFrameEncode(cmd *cobra.Command, args []string) error {
	payload, err := parseHex(strings.Join(args, " "))
	if err != nil {
		return err
	}
	frame := hdlc.Encode(payload)
	fmt.Printf("Checksum: 0x%04X\n", hdlc.Checksum(payload))
	fmt.Printf("Frame:    % X\n", frame)
	return nil
}

func runFrameDecode(cmd *cobra.Command, args []string) error {
	stream, err := parseHex(strings.Join(args, " "))
	if err != nil {
		return err
	}

	scanner := bufio.NewScanner(bytes.NewReader(stream))
	scanner.Split(hdlc.ScanFrames)

	count, bad := 0, 0
	for scanner.Scan() {
		count++
		payload, err := hdlc.Decode(scanner.Bytes())
		if err != nil {
			bad++
			fmt.Printf("Frame %d: %v\n", count, err)
			continue
		}
		fmt.Printf("Frame %d: % X\n", count, payload)
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	if count == 0 {
		return fmt.Errorf("no complete frame in input")
	}
	if bad > 0 {
		return fmt.Errorf("%d of %d frame(s) invalid", bad, count)
	}
	return nil
}

// parseHex accepts "4b650100", "4B 65 01 00", "4b:65:01:00" and 0x prefixes.
func parseHex(s string) ([]byte, error) {
	var clean strings.Builder
	for _, field := range strings.FieldsFunc(s, func(r rune) bool { return r == ' ' || r == ':' || r == ',' || r == '\t' || r == '\n' }) {
		clean.WriteString(strings.TrimPrefix(strings.TrimPrefix(field, "0x"), "0X"))
	}
	data, err := hex.DecodeString(clean.String())
	if err != nil {
		return nil, fmt.Errorf("invalid hex input: %w", err)
	}
	return data, nil
}
