package main

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/requant/internal/logger"
	"github.com/samcharles93/requant/internal/requant"
	"github.com/samcharles93/requant/internal/tflite"
)

func convertCmd() *cli.Command {
	var (
		input  string
		output string
	)

	return &cli.Command{
		Name:  "convert",
		Usage: "Convert an int8 model to int16 activations and int64 biases",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "input",
				Aliases:     []string{"i"},
				Usage:       "path to the int8 .tflite model",
				Required:    true,
				Destination: &input,
			},
			&cli.StringFlag{
				Name:        "output",
				Aliases:     []string{"o"},
				Usage:       "path for the converted model (default: input with _int16 suffix)",
				Destination: &output,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := logger.FromContext(ctx).With("run_id", uuid.NewString())

			if output == "" {
				output = defaultOutputPath(input)
			}

			model, err := tflite.Open(input)
			if err != nil {
				return err
			}
			log.Info("loaded model", "path", input,
				"subgraphs", len(model.SubGraphs), "buffers", len(model.Buffers))

			if err := requant.New(model, log).Convert(); err != nil {
				return err
			}

			if err := tflite.Save(output, model); err != nil {
				return err
			}
			log.Info("wrote converted model", "path", output)
			return nil
		},
	}
}

func defaultOutputPath(input string) string {
	suffix := LoadConfig().OutputSuffix
	if suffix == "" {
		suffix = "_int16.tflite"
	}
	return strings.TrimSuffix(input, ".tflite") + suffix
}
