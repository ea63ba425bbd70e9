package persistence

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"io"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"github.com/hupe1980/bidsgo/bidspath"
	"github.com/hupe1980/bidsgo/codec"
	"github.com/hupe1980/bidsgo/dataset"
	"github.com/hupe1980/bidsgo/index"
)

// Save writes the index to w. When compress is true the payload is
// zstd-compressed and flag bit 0 is set.
func Save(w io.Writer, ix *index.Index, mode bidspath.Mode, compress bool) error {
	payload, err := encodePayload(ix, mode)
	if err != nil {
		return err
	}

	var flags uint16
	if compress {
		flags |= flagZstd
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return err
		}
		payload = enc.EncodeAll(payload, nil)
		if err := enc.Close(); err != nil {
			return err
		}
	}

	header := make([]byte, 0, 16)
	header = append(header, magic[:]...)
	header = binary.LittleEndian.AppendUint16(header, formatVersion)
	header = binary.LittleEndian.AppendUint16(header, flags)
	header = binary.LittleEndian.AppendUint64(header, uint64(len(payload)))
	if _, err := w.Write(header); err != nil {
		return err
	}
	if _, err := w.Write(payload); err != nil {
		return err
	}
	var trailer [4]byte
	binary.LittleEndian.PutUint32(trailer[:], crc32.ChecksumIEEE(payload))
	_, err = w.Write(trailer[:])
	return err
}

// Load reads an index written by Save. Format violations of any kind fail
// with IncompatibleError.
func Load(r io.Reader) (*index.Index, bidspath.Mode, error) {
	header := make([]byte, 16)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, 0, incompatible("short header: %v", err)
	}
	if !bytes.Equal(header[:4], magic[:]) {
		return nil, 0, incompatible("bad magic %q", header[:4])
	}
	if v := binary.LittleEndian.Uint16(header[4:6]); v != formatVersion {
		return nil, 0, incompatible("unsupported version %d", v)
	}
	flags := binary.LittleEndian.Uint16(header[6:8])
	payloadLen := binary.LittleEndian.Uint64(header[8:16])
	if payloadLen > maxPayloadLen {
		return nil, 0, incompatible("payload length %d exceeds limit", payloadLen)
	}

	payload := make([]byte, payloadLen)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, 0, incompatible("short payload: %v", err)
	}
	var trailer [4]byte
	if _, err := io.ReadFull(r, trailer[:]); err != nil {
		return nil, 0, incompatible("missing checksum: %v", err)
	}
	if want, got := binary.LittleEndian.Uint32(trailer[:]), crc32.ChecksumIEEE(payload); want != got {
		return nil, 0, incompatible("checksum mismatch: expected 0x%08x, got 0x%08x", want, got)
	}

	if flags&flagZstd != 0 {
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, 0, err
		}
		defer dec.Close()
		payload, err = dec.DecodeAll(payload, nil)
		if err != nil {
			return nil, 0, incompatible("zstd payload: %v", err)
		}
	}
	return decodePayload(payload)
}

// clampCap bounds slice preallocation for declared counts so corrupted
// payloads cannot trigger runaway allocations; slices still grow to the real
// decoded size.
func clampCap(n uint64) int {
	const limit = 1 << 16
	if n > limit {
		return limit
	}
	return int(n)
}

// heap deduplicates strings referenced by the file table and columns.
type heap struct {
	ids  map[string]uint64
	list []string
}

func newHeap() *heap {
	return &heap{ids: make(map[string]uint64)}
}

func (h *heap) ref(s string) uint64 {
	if id, ok := h.ids[s]; ok {
		return id
	}
	id := uint64(len(h.list))
	h.ids[s] = id
	h.list = append(h.list, s)
	return id
}

func encodePayload(ix *index.Index, mode bidspath.Mode) ([]byte, error) {
	e := &encoder{}
	e.byte(byte(mode))

	datasets := ix.Datasets()
	e.uvarint(uint64(len(datasets)))
	for i := range datasets {
		ds := &datasets[i]
		e.str(ds.Root)
		e.byte(byte(ds.Kind))
		if ds.Label != "" {
			e.byte(1)
			e.str(ds.Label)
		} else {
			e.byte(0)
		}
		var desc []byte
		if ds.Description != nil {
			b, err := codec.Default.Marshal(ds.Description)
			if err != nil {
				return nil, err
			}
			desc = b
		}
		e.blob(desc)
		e.uvarint(uint64(len(ds.Pipelines)))
		for _, p := range ds.Pipelines {
			e.str(p)
		}
	}

	// The heap is written after everything referencing it is known, so
	// encode the file table and columns into side buffers first.
	h := newHeap()

	files := &encoder{}
	files.uvarint(uint64(ix.Len()))
	for id := 0; id < ix.Len(); id++ {
		f := ix.File(uint32(id))
		files.uvarint(uint64(f.DatasetID))
		files.uvarint(h.ref(f.Rel()))
		files.uvarint(uint64(len(f.Parsed.Parts)))
		for _, p := range f.Parsed.Parts {
			files.uvarint(h.ref(p))
		}
	}

	side := &encoder{}
	sidecars := ix.Sidecars()
	side.uvarint(uint64(len(sidecars)))
	for _, sc := range sidecars {
		side.uvarint(uint64(sc.DatasetID))
		side.uvarint(h.ref(sc.Rel()))
	}

	cols := &encoder{}
	encodeColumns(cols, h, ix.EntityNames(), func(name string) *index.Column {
		c, _ := ix.EntityColumn(name)
		return c
	})

	meta := &encoder{}
	if ix.MetadataIndexed() {
		meta.byte(1)
		encodeColumns(meta, h, ix.MetadataNames(), func(name string) *index.Column {
			c, _ := ix.MetadataColumn(name)
			return c
		})
	} else {
		meta.byte(0)
	}

	e.uvarint(uint64(len(h.list)))
	for _, s := range h.list {
		e.str(s)
	}
	e.raw(files)
	e.raw(side)
	e.raw(cols)
	e.raw(meta)
	return e.bytes(), nil
}

// encodeColumns writes each column as runs of consecutive ids sharing one
// value: (start, length, heap ref).
func encodeColumns(e *encoder, h *heap, names []string, col func(string) *index.Column) {
	e.uvarint(uint64(len(names)))
	for _, name := range names {
		e.str(name)
		ids, values := col(name).Entries()

		type run struct {
			start, length uint32
			ref           uint64
		}
		var runs []run
		for i := 0; i < len(ids); i++ {
			ref := h.ref(values[i])
			if n := len(runs); n > 0 && runs[n-1].start+runs[n-1].length == ids[i] && runs[n-1].ref == ref {
				runs[n-1].length++
				continue
			}
			runs = append(runs, run{start: ids[i], length: 1, ref: ref})
		}
		e.uvarint(uint64(len(runs)))
		for _, r := range runs {
			e.uvarint(uint64(r.start))
			e.uvarint(uint64(r.length))
			e.uvarint(r.ref)
		}
	}
}

func decodePayload(payload []byte) (*index.Index, bidspath.Mode, error) {
	d := &decoder{r: bytes.NewReader(payload)}
	mode := bidspath.Mode(d.byte())

	nDatasets := d.uvarint()
	datasets := make([]dataset.Dataset, 0, clampCap(nDatasets))
	for i := uint64(0); i < nDatasets && d.err == nil; i++ {
		ds := dataset.Dataset{
			Root: d.str(),
			Kind: dataset.Kind(d.byte()),
		}
		if d.byte() == 1 {
			ds.Label = d.str()
		}
		if desc := d.blob(); len(desc) > 0 {
			var parsed dataset.Description
			if err := codec.Default.Unmarshal(desc, &parsed); err != nil {
				return nil, 0, incompatible("dataset description: %v", err)
			}
			ds.Description = &parsed
		}
		nPipelines := d.uvarint()
		for j := uint64(0); j < nPipelines && d.err == nil; j++ {
			ds.Pipelines = append(ds.Pipelines, d.str())
		}
		datasets = append(datasets, ds)
	}

	nHeap := d.uvarint()
	heap := make([]string, 0, clampCap(nHeap))
	for i := uint64(0); i < nHeap && d.err == nil; i++ {
		heap = append(heap, d.str())
	}
	deref := func(ref uint64) string {
		if ref >= uint64(len(heap)) {
			d.fail("heap reference %d out of range", ref)
			return ""
		}
		return heap[ref]
	}

	nFiles := d.uvarint()
	files := make([]index.File, 0, clampCap(nFiles))
	for i := uint64(0); i < nFiles && d.err == nil; i++ {
		dsID := d.uvarint()
		if dsID >= uint64(len(datasets)) {
			return nil, 0, incompatible("dataset id %d out of range", dsID)
		}
		rel := deref(d.uvarint())
		parsed := bidspath.NewParsedPath(rel)
		nParts := d.uvarint()
		for j := uint64(0); j < nParts && d.err == nil; j++ {
			parsed.Parts = append(parsed.Parts, deref(d.uvarint()))
		}
		files = append(files, index.File{
			DatasetID: uint32(dsID),
			Path:      filepath.Join(datasets[dsID].Root, filepath.FromSlash(rel)),
			Parsed:    parsed,
		})
	}

	// Sidecar parse records are rehydrated by re-running the parser, which
	// is a pure function of the relative path.
	parser := bidspath.NewParser(mode)
	nSidecars := d.uvarint()
	sidecars := make([]index.File, 0, clampCap(nSidecars))
	for i := uint64(0); i < nSidecars && d.err == nil; i++ {
		dsID := d.uvarint()
		if dsID >= uint64(len(datasets)) {
			return nil, 0, incompatible("dataset id %d out of range", dsID)
		}
		rel := deref(d.uvarint())
		parsed, perr := parser.Parse(rel)
		if perr != nil {
			parsed = bidspath.PartsOnly(rel)
		}
		sidecars = append(sidecars, index.File{
			DatasetID: uint32(dsID),
			Path:      filepath.Join(datasets[dsID].Root, filepath.FromSlash(rel)),
			Parsed:    parsed,
		})
	}

	colOrder, columns := decodeColumns(d, deref, uint64(len(files)))

	metaIndexed := d.byte() == 1
	var metaOrder []string
	metaCols := make(map[string]*index.Column)
	if metaIndexed {
		metaOrder, metaCols = decodeColumns(d, deref, uint64(len(files)))
	}
	if d.err != nil {
		return nil, 0, incompatible("payload: %v", d.err)
	}

	// Rehydrate the per-file parsed attributes from the columns; column
	// order gives entities their canonical insertion order.
	for _, name := range colOrder {
		ids, values := columns[name].Entries()
		for i, id := range ids {
			p := files[id].Parsed
			switch name {
			case "datatype":
				p.Datatype = values[i]
			case "suffix":
				p.Suffix = values[i]
			case "extension":
				p.Extension = values[i]
			default:
				p.AddEntity(name, values[i])
			}
		}
	}

	ix := index.Restore(datasets, files, sidecars, colOrder, columns, metaOrder, metaCols, metaIndexed)
	return ix, mode, nil
}

func decodeColumns(d *decoder, deref func(uint64) string, nFiles uint64) ([]string, map[string]*index.Column) {
	nCols := d.uvarint()
	order := make([]string, 0, clampCap(nCols))
	cols := make(map[string]*index.Column, clampCap(nCols))
	for i := uint64(0); i < nCols && d.err == nil; i++ {
		name := d.str()
		nRuns := d.uvarint()
		var (
			ids    []uint32
			values []string
		)
		for j := uint64(0); j < nRuns && d.err == nil; j++ {
			start := d.uvarint()
			length := d.uvarint()
			value := deref(d.uvarint())
			if start+length > nFiles {
				d.fail("column %q run exceeds file count", name)
				break
			}
			for k := uint64(0); k < length; k++ {
				ids = append(ids, uint32(start+k))
				values = append(values, value)
			}
		}
		order = append(order, name)
		cols[name] = index.NewRestoredColumn(ids, values)
	}
	return order, cols
}
