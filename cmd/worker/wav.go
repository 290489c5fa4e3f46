package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aetherium-labs/aetherium-backend/internal/media"
)

func newWAVCmd() *cobra.Command {
	var (
		mimeType string
		format   = media.DefaultPCMFormat()
	)
	cmd := &cobra.Command{
		Use:   "wav <in.pcm> <out.wav>",
		Short: "Frame raw little-endian PCM into a WAV file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := format
			if mimeType != "" {
				f = media.ParsePCMMimeType(mimeType)
			}
			return convertWAV(args[0], args[1], f)
		},
	}
	cmd.Flags().StringVar(&mimeType, "mime", "", `PCM mime type, e.g. "audio/L16;codec=pcm;rate=24000" (overrides the other flags)`)
	cmd.Flags().IntVar(&format.SampleRate, "rate", format.SampleRate, "sample rate in Hz")
	cmd.Flags().IntVar(&format.Channels, "channels", format.Channels, "channel count")
	cmd.Flags().IntVar(&format.BitDepth, "bits", format.BitDepth, "bits per sample")
	return cmd
}

func convertWAV(in, out string, f media.PCMFormat) error {
	pcm, err := os.ReadFile(in)
	if err != nil {
		return err
	}
	wav, err := media.EncodeWAV(pcm, f)
	if err != nil {
		return fmt.Errorf("encode %s: %w", in, err)
	}
	return os.WriteFile(out, wav, 0o644)
}
