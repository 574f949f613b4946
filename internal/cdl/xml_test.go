package cdl

import (
	"bytes"
	"encoding/xml"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode_Shape(t *testing.T) {
	c := NewCollection()
	_, err := c.Add("123AB_456", unity, zero, unity, "1.0")
	require.NoError(t, err)

	out, err := c.MarshalIndent()
	require.NoError(t, err)

	want := xml.Header +
		`<ColorCorrectionCollection xmlns="urn:ASC:CDL:v1.2">
  <ColorCorrection id="123AB_456">
    <SOPNode>
      <Slope>1.0 1.0 1.0</Slope>
      <Offset>0.0 0.0 0.0</Offset>
      <Power>1.0 1.0 1.0</Power>
    </SOPNode>
    <SATNode>
      <Saturation>1.0</Saturation>
    </SATNode>
  </ColorCorrection>
</ColorCorrectionCollection>
`
	assert.Equal(t, want, string(out))
}

func TestEncode_Empty(t *testing.T) {
	out, err := NewCollection().MarshalIndent()
	require.NoError(t, err)
	assert.Contains(t, string(out), `<ColorCorrectionCollection xmlns="urn:ASC:CDL:v1.2"></ColorCorrectionCollection>`)
}

func TestEncode_EscapesText(t *testing.T) {
	c := NewCollection()
	_, err := c.Add("1AA_1", unity, zero, unity, "1.0 <&>")
	require.NoError(t, err)

	out, err := c.MarshalIndent()
	require.NoError(t, err)
	assert.Contains(t, string(out), "<Saturation>1.0 &lt;&amp;&gt;</Saturation>")
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	c := NewCollection()
	names := []string{"20B_200", "10A_100", "10A_100", "30C_300"}
	for i, name := range names {
		sat := []string{"1.0", "0.9", "0.85", "1.2"}[i]
		_, err := c.Add(name, Triplet{"1.1", "1.2", "1.3"}, Triplet{"0.01", "0.02", "0.03"}, Triplet{"0.9", "1.0", "1.1"}, sat)
		require.NoError(t, err)
	}
	c.SortByID()

	var buf bytes.Buffer
	require.NoError(t, c.Encode(&buf))
	assert.Equal(t, len(names), strings.Count(buf.String(), "<ColorCorrection id="))

	back, err := Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, c.Entries(), back.Entries())
	assert.Equal(t, []string{"10A_100", "10A_100_v1", "20B_200", "30C_300"}, back.IDs())
}

func TestDecode_ForeignDocuments(t *testing.T) {
	doc := `<?xml version="1.0" encoding="UTF-8"?>
<ColorCorrectionCollection xmlns="urn:ASC:CDL:v1.01">
  <ColorCorrection id="af-123">
    <SOPNode>
      <Description>day exterior</Description>
      <Slope>2 1 1</Slope>
      <Offset>0 0 0</Offset>
      <Power>1 1 1</Power>
    </SOPNode>
    <SatNode>
      <Saturation>1</Saturation>
    </SatNode>
  </ColorCorrection>
  <ColorCorrection id="mygrade">
    <SOPNode>
      <Slope>0.9 0.7 0.9</Slope>
      <Offset>0 0 0</Offset>
      <Power>1 1 1</Power>
    </SOPNode>
    <SATNode>
      <Saturation>1</Saturation>
    </SATNode>
  </ColorCorrection>
</ColorCorrectionCollection>`

	c, err := Decode(strings.NewReader(doc))
	require.NoError(t, err)
	require.Equal(t, []string{"af-123", "mygrade"}, c.IDs())

	af, ok := c.Get("af-123")
	require.True(t, ok)
	assert.Equal(t, Triplet{"2", "1", "1"}, af.Slope)
	assert.Equal(t, "1", af.Saturation)
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"not xml", "not xml at all"},
		{"wrong root", `<Other/>`},
		{"missing id", `<ColorCorrectionCollection><ColorCorrection><SOPNode><Slope>1 1 1</Slope><Offset>0 0 0</Offset><Power>1 1 1</Power></SOPNode><SATNode><Saturation>1</Saturation></SATNode></ColorCorrection></ColorCorrectionCollection>`},
		{"missing SOPNode", `<ColorCorrectionCollection><ColorCorrection id="a"><SATNode><Saturation>1</Saturation></SATNode></ColorCorrection></ColorCorrectionCollection>`},
		{"missing SATNode", `<ColorCorrectionCollection><ColorCorrection id="a"><SOPNode><Slope>1 1 1</Slope><Offset>0 0 0</Offset><Power>1 1 1</Power></SOPNode></ColorCorrection></ColorCorrectionCollection>`},
		{"short triplet", `<ColorCorrectionCollection><ColorCorrection id="a"><SOPNode><Slope>1 1</Slope><Offset>0 0 0</Offset><Power>1 1 1</Power></SOPNode><SATNode><Saturation>1</Saturation></SATNode></ColorCorrection></ColorCorrectionCollection>`},
		{"duplicate id", `<ColorCorrectionCollection>` +
			`<ColorCorrection id="a"><SOPNode><Slope>1 1 1</Slope><Offset>0 0 0</Offset><Power>1 1 1</Power></SOPNode><SATNode><Saturation>1</Saturation></SATNode></ColorCorrection>` +
			`<ColorCorrection id="a"><SOPNode><Slope>1 1 1</Slope><Offset>0 0 0</Offset><Power>1 1 1</Power></SOPNode><SATNode><Saturation>1</Saturation></SATNode></ColorCorrection>` +
			`</ColorCorrectionCollection>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tt.doc))
			assert.Error(t, err)
		})
	}
}

func TestIsCollection(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want bool
	}{
		{"encoded", xml.Header + `<ColorCorrectionCollection xmlns="urn:ASC:CDL:v1.2"></ColorCorrectionCollection>`, true},
		{"comment before root", `<!-- grade --><ColorCorrectionCollection>`, true},
		{"other root", `<ColorDecisionList/>`, false},
		{"ale text", "Heading\nFIELD_DELIM\tTABS\n", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsCollection(strings.NewReader(tt.doc)))
		})
	}
}
