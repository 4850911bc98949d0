package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/goccy/go-json"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/requant/internal/tflite"
)

type tensorSummary struct {
	Index     int     `json:"index"`
	Name      string  `json:"name"`
	Type      string  `json:"type"`
	Shape     []int32 `json:"shape,omitempty"`
	Scale     float32 `json:"scale,omitempty"`
	ZeroPoint int64   `json:"zero_point,omitempty"`
}

type operatorSummary struct {
	Index   int     `json:"index"`
	Kind    string  `json:"kind"`
	Inputs  []int32 `json:"inputs"`
	Outputs []int32 `json:"outputs"`
}

type subgraphSummary struct {
	Name      string            `json:"name,omitempty"`
	Tensors   []tensorSummary   `json:"tensors"`
	Operators []operatorSummary `json:"operators"`
}

type modelSummary struct {
	Path        string            `json:"path"`
	Version     uint32            `json:"version"`
	Description string            `json:"description,omitempty"`
	Buffers     int               `json:"buffers"`
	SubGraphs   []subgraphSummary `json:"subgraphs"`
}

func inspectCmd() *cli.Command {
	var asJSON bool

	return &cli.Command{
		Name:      "inspect",
		Usage:     "Print a summary of a .tflite model",
		ArgsUsage: "<path.tflite>",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "json",
				Usage:       "emit the summary as JSON",
				Destination: &asJSON,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() < 1 {
				return errors.New("usage: requant inspect [--json] <path.tflite>")
			}
			path := cmd.Args().First()

			model, err := tflite.Open(path)
			if err != nil {
				return err
			}
			summary := summarize(path, model)

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(summary)
			}
			printSummary(summary)
			return nil
		},
	}
}

func summarize(path string, m *tflite.Model) modelSummary {
	s := modelSummary{
		Path:        path,
		Version:     m.Version,
		Description: m.Description,
		Buffers:     len(m.Buffers),
	}
	for _, sg := range m.SubGraphs {
		gs := subgraphSummary{Name: sg.Name}
		for i, t := range sg.Tensors {
			ts := tensorSummary{
				Index: i,
				Name:  t.Name,
				Type:  t.Type.String(),
				Shape: t.Shape,
			}
			if q := t.Quantization; q != nil && len(q.Scale) > 0 && len(q.ZeroPoint) > 0 {
				ts.Scale = q.Scale[0]
				ts.ZeroPoint = q.ZeroPoint[0]
			}
			gs.Tensors = append(gs.Tensors, ts)
		}
		for i, op := range sg.Operators {
			kind := "?"
			if int(op.OpcodeIndex) < len(m.OperatorCodes) {
				kind = m.OperatorCodes[op.OpcodeIndex].Code().String()
			}
			gs.Operators = append(gs.Operators, operatorSummary{
				Index:   i,
				Kind:    kind,
				Inputs:  op.Inputs,
				Outputs: op.Outputs,
			})
		}
		s.SubGraphs = append(s.SubGraphs, gs)
	}
	return s
}

func printSummary(s modelSummary) {
	fmt.Printf("File: %s\n", s.Path)
	fmt.Printf("TFLite v%d | subgraphs=%d | buffers=%d\n", s.Version, len(s.SubGraphs), s.Buffers)
	if s.Description != "" {
		fmt.Printf("Description: %s\n", s.Description)
	}
	for gi, sg := range s.SubGraphs {
		fmt.Println()
		name := sg.Name
		if name == "" {
			name = fmt.Sprintf("#%d", gi)
		}
		fmt.Printf("Subgraph %s: %d tensors, %d operators\n", name, len(sg.Tensors), len(sg.Operators))
		for _, t := range sg.Tensors {
			fmt.Printf("  [%3d] %-40s %-8s shape=%v scale=%g zp=%d\n",
				t.Index, t.Name, t.Type, t.Shape, t.Scale, t.ZeroPoint)
		}
		for _, op := range sg.Operators {
			fmt.Printf("  op %2d %-28s inputs=%v outputs=%v\n", op.Index, op.Kind, op.Inputs, op.Outputs)
		}
	}
}
