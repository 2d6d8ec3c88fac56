package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ayusman/lizard/internal/detector"
	"github.com/ayusman/lizard/internal/focus"
)

// landmarkFile accepts explicit eyes, a full FaceMesh landmark list, or a
// face mesh service response (first face used).
type landmarkFile struct {
	Left   focus.EyeLandmarks       `json:"left"`
	Right  focus.EyeLandmarks       `json:"right"`
	Points []detector.Point3D       `json:"points"`
	Faces  []detector.FaceLandmarks `json:"faces"`
}

type classifyOutput struct {
	Focused      bool    `json:"focused"`
	Ratio        float64 `json:"ratio"`
	Threshold    float64 `json:"threshold"`
	FaceDetected bool    `json:"face_detected"`
}

func newClassifyCmd(flags *rootFlags) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "classify <landmarks.json|->",
		Short: "Classify one frame of eye landmarks as focused or not",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, flags)
			if err != nil {
				return err
			}

			var data []byte
			if args[0] == "-" {
				data, err = io.ReadAll(cmd.InOrStdin())
			} else {
				data, err = os.ReadFile(args[0])
			}
			if err != nil {
				return fmt.Errorf("read landmarks: %w", err)
			}

			est := focus.NewEstimator(cfg.Threshold, focus.WithRatioFunc(cfg.RatioFunc()))
			out, err := classifyLandmarks(est, data)
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(out)
			}

			status := "not focused"
			switch {
			case !out.FaceDetected:
				status = "no face"
			case out.Focused:
				status = "focused"
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "ratio=%.4f threshold=%.2f status=%s\n", out.Ratio, out.Threshold, status)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	return cmd
}

func classifyLandmarks(est *focus.Estimator, data []byte) (classifyOutput, error) {
	var in landmarkFile
	if err := json.Unmarshal(data, &in); err != nil {
		return classifyOutput{}, fmt.Errorf("parse landmarks: %w", err)
	}

	out := classifyOutput{Threshold: est.Threshold()}

	switch {
	case in.Left != nil || in.Right != nil:
		focused, ratio, err := est.Classify(in.Left, in.Right)
		if err != nil {
			return classifyOutput{}, err
		}
		out.Focused, out.Ratio, out.FaceDetected = focused, ratio, true
		return out, nil
	case in.Points != nil:
		in.Faces = []detector.FaceLandmarks{{Points: in.Points}}
	case in.Faces == nil:
		return classifyOutput{}, errors.New("landmarks file has no left/right, points or faces")
	}

	var face *detector.FaceLandmarks
	if len(in.Faces) > 0 {
		face = &in.Faces[0]
	}
	res, err := est.ClassifyFace(face)
	if err != nil {
		return classifyOutput{}, err
	}
	out.Focused, out.Ratio, out.FaceDetected = res.Focused, res.Ratio, res.FaceDetected
	return out, nil
}
