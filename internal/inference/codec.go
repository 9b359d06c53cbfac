package inference

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/banshee-data/motrack/internal/detect"
	"github.com/banshee-data/motrack/internal/geom"
	"github.com/banshee-data/motrack/internal/linalg"
)

// Payload field names.
const (
	fieldFrame       = "frame"
	fieldConfidence  = "confidence"
	fieldTypes       = "types"
	fieldBoxes       = "boxes"
	fieldDetections  = "detections"
	fieldDescriptors = "descriptors"
	fieldType        = "type"
	fieldBox         = "box"
)

func encodeFrame(img image.Image) (string, error) {
	if img == nil {
		return "", nil
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("encode frame: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

func decodeFrame(s *structpb.Struct) (image.Image, error) {
	v, ok := s.GetFields()[fieldFrame]
	if !ok || v.GetStringValue() == "" {
		return nil, nil
	}
	raw, err := base64.StdEncoding.DecodeString(v.GetStringValue())
	if err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	img, err := png.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	return img, nil
}

func boxValue(b geom.Box) []interface{} {
	return []interface{}{b.X, b.Y, b.W, b.H}
}

func boxFrom(v *structpb.Value) (geom.Box, error) {
	vals := v.GetListValue().GetValues()
	if len(vals) != 4 {
		return geom.Box{}, fmt.Errorf("box needs 4 numbers, got %d", len(vals))
	}
	return geom.Box{
		X: vals[0].GetNumberValue(),
		Y: vals[1].GetNumberValue(),
		W: vals[2].GetNumberValue(),
		H: vals[3].GetNumberValue(),
	}, nil
}

func detectRequest(img image.Image, confidence float32, types []detect.ObjectType) (*structpb.Struct, error) {
	frame, err := encodeFrame(img)
	if err != nil {
		return nil, err
	}
	names := make([]interface{}, len(types))
	for i, t := range types {
		names[i] = t.String()
	}
	return structpb.NewStruct(map[string]interface{}{
		fieldFrame:      frame,
		fieldConfidence: float64(confidence),
		fieldTypes:      names,
	})
}

func parseDetectRequest(s *structpb.Struct) (image.Image, float32, []detect.ObjectType, error) {
	img, err := decodeFrame(s)
	if err != nil {
		return nil, 0, nil, err
	}
	confidence := float32(s.GetFields()[fieldConfidence].GetNumberValue())
	var types []detect.ObjectType
	for _, v := range s.GetFields()[fieldTypes].GetListValue().GetValues() {
		t, err := detect.ParseObjectType(v.GetStringValue())
		if err != nil {
			return nil, 0, nil, err
		}
		types = append(types, t)
	}
	return img, confidence, types, nil
}

func detectResponse(dets []detect.Detection) (*structpb.Struct, error) {
	list := make([]interface{}, len(dets))
	for i, d := range dets {
		list[i] = map[string]interface{}{
			fieldType:       d.Type.String(),
			fieldBox:        boxValue(d.Box),
			fieldConfidence: float64(d.Confidence),
		}
	}
	return structpb.NewStruct(map[string]interface{}{fieldDetections: list})
}

func parseDetectResponse(s *structpb.Struct) ([]detect.Detection, error) {
	vals := s.GetFields()[fieldDetections].GetListValue().GetValues()
	out := make([]detect.Detection, 0, len(vals))
	for i, v := range vals {
		fields := v.GetStructValue().GetFields()
		t, err := detect.ParseObjectType(fields[fieldType].GetStringValue())
		if err != nil {
			return nil, fmt.Errorf("detection %d: %w", i, err)
		}
		box, err := boxFrom(fields[fieldBox])
		if err != nil {
			return nil, fmt.Errorf("detection %d: %w", i, err)
		}
		out = append(out, detect.Detection{
			Type:       t,
			Box:        box,
			Confidence: float32(fields[fieldConfidence].GetNumberValue()),
		})
	}
	return out, nil
}

func embedRequest(img image.Image, boxes []geom.Box) (*structpb.Struct, error) {
	frame, err := encodeFrame(img)
	if err != nil {
		return nil, err
	}
	list := make([]interface{}, len(boxes))
	for i, b := range boxes {
		list[i] = boxValue(b)
	}
	return structpb.NewStruct(map[string]interface{}{
		fieldFrame: frame,
		fieldBoxes: list,
	})
}

func parseEmbedRequest(s *structpb.Struct) (image.Image, []geom.Box, error) {
	img, err := decodeFrame(s)
	if err != nil {
		return nil, nil, err
	}
	vals := s.GetFields()[fieldBoxes].GetListValue().GetValues()
	boxes := make([]geom.Box, 0, len(vals))
	for i, v := range vals {
		b, err := boxFrom(v)
		if err != nil {
			return nil, nil, fmt.Errorf("box %d: %w", i, err)
		}
		boxes = append(boxes, b)
	}
	return img, boxes, nil
}

func embedResponse(descriptors []linalg.Vector) (*structpb.Struct, error) {
	list := make([]interface{}, len(descriptors))
	for i, d := range descriptors {
		row := make([]interface{}, len(d))
		for j, x := range d {
			row[j] = x
		}
		list[i] = row
	}
	return structpb.NewStruct(map[string]interface{}{fieldDescriptors: list})
}

func parseEmbedResponse(s *structpb.Struct) []linalg.Vector {
	vals := s.GetFields()[fieldDescriptors].GetListValue().GetValues()
	out := make([]linalg.Vector, len(vals))
	for i, v := range vals {
		row := v.GetListValue().GetValues()
		d := linalg.NewVector(len(row))
		for j, x := range row {
			d[j] = x.GetNumberValue()
		}
		out[i] = d
	}
	return out
}
