package proto

import (
	"bytes"
	"encoding/binary"

	"github.com/secondsight/rfengine/internal/apperr"
)

// tableMagic identifies the unified binary table envelope, an
// alternative encoding to JSON for bulk SCF/TFD results. There is no
// Arrow (or any columnar IPC library) anywhere in the reference corpus
// this service's stack is drawn from, so bulk 2-D results have one
// hand-rolled binary framing instead: a small header, two float32 axis
// vectors, and the row-major magnitude matrix, each vector prefixed by
// its length. The service's command handlers do not emit it.
const tableMagic uint32 = 0x52464442 // "RFDB"

// Table is the decoded form of the binary bulk-transport envelope.
type Table struct {
	Rows, Cols int
	RowAxis    []float32
	ColAxis    []float32
	Data       [][]float32
}

// EncodeTable serializes t as the unified binary table envelope.
func EncodeTable(t *Table) []byte {
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, tableMagic)
	binary.Write(buf, binary.LittleEndian, uint32(t.Rows))
	binary.Write(buf, binary.LittleEndian, uint32(t.Cols))
	writeFloat32Slice(buf, t.RowAxis)
	writeFloat32Slice(buf, t.ColAxis)
	for _, row := range t.Data {
		writeFloat32Slice(buf, row)
	}
	return buf.Bytes()
}

// DecodeTable parses the unified binary table envelope.
func DecodeTable(data []byte) (*Table, error) {
	buf := bytes.NewReader(data)
	var magic, rows, cols uint32
	if err := binary.Read(buf, binary.LittleEndian, &magic); err != nil {
		return nil, apperr.Transportf("truncated table envelope: %v", err)
	}
	if magic != tableMagic {
		return nil, apperr.Transportf("bad table envelope magic: %#x", magic)
	}
	if err := binary.Read(buf, binary.LittleEndian, &rows); err != nil {
		return nil, apperr.Transportf("truncated table envelope: %v", err)
	}
	if err := binary.Read(buf, binary.LittleEndian, &cols); err != nil {
		return nil, apperr.Transportf("truncated table envelope: %v", err)
	}

	rowAxis, err := readFloat32Slice(buf)
	if err != nil {
		return nil, err
	}
	colAxis, err := readFloat32Slice(buf)
	if err != nil {
		return nil, err
	}

	data2D := make([][]float32, rows)
	for i := 0; i < int(rows); i++ {
		row, err := readFloat32Slice(buf)
		if err != nil {
			return nil, err
		}
		data2D[i] = row
	}

	return &Table{
		Rows:    int(rows),
		Cols:    int(cols),
		RowAxis: rowAxis,
		ColAxis: colAxis,
		Data:    data2D,
	}, nil
}

func writeFloat32Slice(buf *bytes.Buffer, v []float32) {
	binary.Write(buf, binary.LittleEndian, uint32(len(v)))
	binary.Write(buf, binary.LittleEndian, v)
}

func readFloat32Slice(buf *bytes.Reader) ([]float32, error) {
	var n uint32
	if err := binary.Read(buf, binary.LittleEndian, &n); err != nil {
		return nil, apperr.Transportf("truncated table envelope: %v", err)
	}
	out := make([]float32, n)
	if err := binary.Read(buf, binary.LittleEndian, out); err != nil {
		return nil, apperr.Transportf("truncated table envelope: %v", err)
	}
	return out, nil
}
