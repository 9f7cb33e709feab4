package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/linuxmatters/tempodetect/internal/audio"
	"github.com/linuxmatters/tempodetect/internal/beatdetect"
	"github.com/linuxmatters/tempodetect/internal/cli"
	"github.com/linuxmatters/tempodetect/internal/ui"
)

const version = "0.1.0"

var CLI struct {
	Input string `arg:"" name:"input" help:"Input audio file (.wav, .mp3, .flac, .opus). Omit to run a synthetic click train." optional:"" type:"existingfile"`

	ClickBPM float64 `help:"Tempo of the synthetic click train, used when no input file is given." default:"120"`
	Duration float64 `help:"Duration in seconds of the synthetic click train." default:"20"`

	MinTempo float64 `help:"Lower bound of the tracked tempo range, BPM." default:"60"`
	MaxTempo float64 `help:"Upper bound of the tracked tempo range, BPM." default:"200"`

	Live    bool `help:"Show a live terminal view of onset strength and tempo." short:"l"`
	Version bool `help:"Show version information." short:"v"`
}

const blockSize = 4096

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("beatdetect"),
		kong.Description("Causal, streaming beats-per-minute estimation from a live or recorded audio feed."),
		kong.Vars{"version": version},
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{Compact: true}),
		kong.Help(cli.StyledHelpPrinter(kong.HelpOptions{})),
	)
	_ = ctx

	if CLI.Version {
		cli.PrintVersion(version)
		os.Exit(0)
	}

	cli.PrintBanner()

	decoder, err := openDecoder()
	if err != nil {
		cli.PrintError(err.Error())
		os.Exit(1)
	}
	defer decoder.Close()

	cfg := beatdetect.DefaultConfig()
	cfg.SampleRate = decoder.SampleRate()
	cfg.MinTempo = CLI.MinTempo
	cfg.MaxTempo = CLI.MaxTempo

	detector, err := beatdetect.New(cfg)
	if err != nil {
		cli.PrintError(err.Error())
		os.Exit(1)
	}

	if CLI.Live {
		runLive(decoder, detector, cfg)
		return
	}
	runHeadless(decoder, detector, cfg)
}

// openDecoder picks a format by extension, falling back to a synthetic
// click train when no input file is given.
func openDecoder() (audio.AudioDecoder, error) {
	if CLI.Input == "" {
		cli.PrintInfo("Source", fmt.Sprintf("synthetic click train, %.0f BPM", CLI.ClickBPM))
		return audio.NewClickTrainDecoder(beatdetect.DefaultSampleRate, CLI.ClickBPM, CLI.Duration), nil
	}

	switch strings.ToLower(filepath.Ext(CLI.Input)) {
	case ".wav":
		return audio.NewWAVDecoder(CLI.Input)
	case ".mp3":
		return audio.NewMP3Decoder(CLI.Input)
	case ".flac":
		return audio.NewFLACDecoder(CLI.Input)
	case ".opus":
		return audio.NewOpusDecoder(CLI.Input, 48000, 1)
	default:
		return nil, fmt.Errorf("unrecognized audio format: %s", CLI.Input)
	}
}

// runHeadless reads the source to completion on the calling goroutine,
// printing a summary once the stream ends.
func runHeadless(decoder audio.AudioDecoder, detector *beatdetect.Detector, cfg beatdetect.Config) {
	var peakCount, beatCount int
	var lastBPM float32

	detector.SetPlotSink(countingSink{peaks: &peakCount})
	detector.SetBeatHandler(func(timestamp float64, bpm float32) {
		beatCount++
		lastBPM = bpm
	})

	start := time.Now()
	var totalSamples int64

	for {
		chunk, err := decoder.ReadChunk(blockSize)
		if err == audio.EOF {
			break
		}
		if err != nil {
			cli.PrintError(fmt.Sprintf("reading audio: %v", err))
			os.Exit(1)
		}
		if len(chunk) == 0 {
			continue
		}

		block := make([]float32, len(chunk))
		timestamp := float64(totalSamples) / float64(cfg.SampleRate)
		for i, s := range chunk {
			block[i] = float32(s)
		}
		totalSamples += int64(len(chunk))

		detector.ProcessBlock(block, timestamp)
	}

	elapsed := cli.FormatDuration(time.Since(start))
	finalBPM := ""
	if lastBPM > 0 {
		finalBPM = cli.FormatBPM(lastBPM)
	}
	cli.PrintBeatSummary(elapsed, fmt.Sprintf("%d", peakCount), fmt.Sprintf("%d", beatCount), finalBPM)
}

// runLive decodes on a background goroutine and feeds a Bubbletea
// program over a BlockBuffer, keeping ProcessBlock calls confined to
// the single consumer loop.
func runLive(decoder audio.AudioDecoder, detector *beatdetect.Detector, cfg beatdetect.Config) {
	buf := audio.NewBlockBuffer(cfg.SampleRate, 1<<20)
	totalSamples := decoder.NumSamples()

	go func() {
		defer buf.Close()
		for {
			chunk, err := decoder.ReadChunk(blockSize)
			if err == audio.EOF || err == io.EOF {
				return
			}
			if err != nil || len(chunk) == 0 {
				return
			}
			if err := buf.Write(chunk); err != nil {
				return
			}
		}
	}()

	model := ui.NewModel()
	program := tea.NewProgram(model)

	detector.SetPlotSink(teaSink{program: program})
	detector.SetBeatHandler(func(timestamp float64, bpm float32) {
		program.Send(ui.BeatMsg{Timestamp: timestamp, BPM: bpm})
	})

	go func() {
		var processed int64
		for {
			block, err := buf.ReadBlock(blockSize)
			if len(block.Samples) > 0 {
				detector.ProcessBlock(block.Samples, block.Timestamp)
				processed += int64(len(block.Samples))
				program.Send(ui.ProgressMsg{ProcessedSamples: processed, TotalSamples: totalSamples})
			}
			if err == audio.ErrBufferClosed {
				program.Send(ui.QuitMsg{})
				return
			}
		}
	}()

	if _, err := program.Run(); err != nil {
		cli.PrintError(err.Error())
		os.Exit(1)
	}
}

type countingSink struct {
	peaks *int
}

func (s countingSink) OnOSF(timestamp float64, magnitude float64) {}
func (s countingSink) OnPeak(timestamp float64)                   { *s.peaks++ }

type teaSink struct {
	program *tea.Program
}

func (s teaSink) OnOSF(timestamp float64, magnitude float64) {
	s.program.Send(ui.OSFMsg{Timestamp: timestamp, Magnitude: magnitude})
}

func (s teaSink) OnPeak(timestamp float64) {
	s.program.Send(ui.PeakMsg{Timestamp: timestamp})
}
