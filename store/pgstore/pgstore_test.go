package pgstore

import (
	"strings"
	"testing"

	"github.com/wudi/signkit/asset"
)

func TestPlacementsJSONRoundTrip(t *testing.T) {
	in := []asset.NormalizedPlacement{
		{SignatureID: "sig-1", X: 0.425, Y: 0.45, Width: 0.15, Height: 0.1, Rotation: 270},
		{SignatureID: "sig-2", X: 0, Y: 0, Width: 0.075, Height: 0.05},
	}
	data, err := encodePlacements(in)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	out, err := decodePlacements(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out) != 2 || out[0] != in[0] || out[1] != in[1] {
		t.Fatalf("round trip mismatch: %+v", out)
	}
}

func TestNilPlacementsEncodeToNull(t *testing.T) {
	data, err := encodePlacements(nil)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if data != nil {
		t.Fatalf("nil placements should store SQL NULL, got %q", data)
	}
	out, err := decodePlacements(nil)
	if err != nil || out != nil {
		t.Fatalf("decode nil: %v %v", out, err)
	}
}

func TestZeroRotationIsOmittedFromStoredJSON(t *testing.T) {
	data, err := encodePlacements([]asset.NormalizedPlacement{{SignatureID: "s", Width: 0.1, Height: 0.1}})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if len(data) == 0 || strings.Contains(string(data), `"rotation"`) {
		t.Fatalf("zero rotation should be omitted: %s", data)
	}
}
