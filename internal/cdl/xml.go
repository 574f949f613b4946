package cdl

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
)

// Namespace is the XML namespace of an ASC CDL v1.2 collection.
const Namespace = "urn:ASC:CDL:v1.2"

type xmlCollection struct {
	XMLName     xml.Name        `xml:"urn:ASC:CDL:v1.2 ColorCorrectionCollection"`
	Corrections []xmlCorrection `xml:"ColorCorrection"`
}

type xmlCorrection struct {
	ID  string `xml:"id,attr"`
	SOP xmlSOP `xml:"SOPNode"`
	SAT xmlSAT `xml:"SATNode"`
}

type xmlSOP struct {
	Slope  string `xml:"Slope"`
	Offset string `xml:"Offset"`
	Power  string `xml:"Power"`
}

type xmlSAT struct {
	Saturation string `xml:"Saturation"`
}

// decodeCollection accepts any namespace and both SATNode spellings seen in the wild.
type decodeCollection struct {
	XMLName     xml.Name `xml:"ColorCorrectionCollection"`
	Corrections []struct {
		ID      string  `xml:"id,attr"`
		SOP     *xmlSOP `xml:"SOPNode"`
		SATNode *xmlSAT `xml:"SATNode"`
		SatNode *xmlSAT `xml:"SatNode"`
	} `xml:"ColorCorrection"`
}

// Encode writes the collection as an indented CCC document, entries in their current order.
func (c *Collection) Encode(w io.Writer) error {
	doc := xmlCollection{Corrections: make([]xmlCorrection, 0, len(c.entries))}
	for _, e := range c.entries {
		doc.Corrections = append(doc.Corrections, xmlCorrection{
			ID: e.ID,
			SOP: xmlSOP{
				Slope:  e.Slope.String(),
				Offset: e.Offset.String(),
				Power:  e.Power.String(),
			},
			SAT: xmlSAT{Saturation: e.Saturation},
		})
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode collection: %w", err)
	}
	if err := enc.Close(); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}

// MarshalIndent returns the encoded CCC document.
func (c *Collection) MarshalIndent() ([]byte, error) {
	var buf bytes.Buffer
	if err := c.Encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// IsCollection reports whether r starts with a ColorCorrectionCollection element.
// Only the prolog and the root start tag are read.
func IsCollection(r io.Reader) bool {
	dec := xml.NewDecoder(r)
	for {
		tok, err := dec.Token()
		if err != nil {
			return false
		}
		if se, ok := tok.(xml.StartElement); ok {
			return se.Name.Local == "ColorCorrectionCollection"
		}
	}
}

// Decode parses a CCC document. Entries keep document order and ids verbatim;
// a document with duplicate ids is rejected.
func Decode(r io.Reader, opts ...Option) (*Collection, error) {
	var doc decodeCollection
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode collection: %w", err)
	}

	c := NewCollection(opts...)
	for i, x := range doc.Corrections {
		if x.ID == "" {
			return nil, fmt.Errorf("ColorCorrection %d has no id", i+1)
		}
		if x.SOP == nil {
			return nil, fmt.Errorf("ColorCorrection %q has no SOPNode", x.ID)
		}
		sat := x.SATNode
		if sat == nil {
			sat = x.SatNode
		}
		if sat == nil {
			return nil, fmt.Errorf("ColorCorrection %q has no SATNode", x.ID)
		}

		cc := ColorCorrection{ID: x.ID, Saturation: sat.Saturation}
		var err error
		if cc.Slope, err = ParseTriplet(x.SOP.Slope); err != nil {
			return nil, fmt.Errorf("ColorCorrection %q Slope: %w", x.ID, err)
		}
		if cc.Offset, err = ParseTriplet(x.SOP.Offset); err != nil {
			return nil, fmt.Errorf("ColorCorrection %q Offset: %w", x.ID, err)
		}
		if cc.Power, err = ParseTriplet(x.SOP.Power); err != nil {
			return nil, fmt.Errorf("ColorCorrection %q Power: %w", x.ID, err)
		}
		if err := c.insert(cc); err != nil {
			return nil, err
		}
	}
	return c, nil
}
