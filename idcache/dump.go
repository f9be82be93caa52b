package idcache

import (
	"encoding/base64"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/nspcc-dev/neo-go/pkg/core/storage"
)

// global encoding of binary values.
var _encoding = base64.StdEncoding

// dump record layout: identifier, path, height, base64 value. Identifier
// markers are dumped with empty path, height and value.
const dumpRecordFields = 4

// Export writes all Cache items into w as CSV records
//
//	identifier,path,height,value
//
// where value is base64-encoded JSON. Registered identifiers are written
// first as 'identifier,,,' records. The dump can be loaded back by Import.
func (c *Cache) Export(w io.Writer) error {
	c.mtx.RLock()
	defer c.mtx.RUnlock()

	out := csv.NewWriter(w)

	for _, id := range c.identifiers() {
		err := out.Write([]string{id, "", "", ""})
		if err != nil {
			return fmt.Errorf("write identifier record: %w", err)
		}
	}

	var err error

	c.st.Seek(storage.SeekRange{Prefix: []byte{prefixVersion}}, func(k, v []byte) bool {
		id, path, height, ok := splitFullVersionKey(k[1:])
		if !ok {
			return true
		}

		err = out.Write([]string{
			id,
			path,
			strconv.FormatUint(uint64(height), 10),
			_encoding.EncodeToString(v),
		})
		if err != nil {
			err = fmt.Errorf("write version record: %w", err)
			return false
		}

		return true
	})
	if err != nil {
		return err
	}

	out.Flush()

	err = out.Error()
	if err != nil {
		return fmt.Errorf("flush CSV data: %w", err)
	}

	return nil
}

// Import reads CSV records produced by Export from r and saves them into
// the Cache. Either all records are saved or none. Existing items with the
// same keys are overwritten, others are kept.
func (c *Cache) Import(r io.Reader) error {
	in := csv.NewReader(r)
	in.FieldsPerRecord = dumpRecordFields
	in.ReuseRecord = true

	batch := make(map[string][]byte)

	for line := 1; ; line++ {
		rec, err := in.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return fmt.Errorf("read next CSV record: %w", err)
		}

		// out-of-range safety guaranteed by csv settings
		id, path := rec[0], rec[1]

		if err = checkName("identifier", id); err != nil {
			return fmt.Errorf("record #%d: %w", line, err)
		}

		batch[string(identifierKey(id))] = markerValue

		if path == "" {
			continue
		}

		if err = checkName("path", path); err != nil {
			return fmt.Errorf("record #%d: %w", line, err)
		}

		height, err := strconv.ParseUint(rec[2], 10, 32)
		if err != nil {
			return fmt.Errorf("record #%d: decode height: %w", line, err)
		}

		raw, err := _encoding.DecodeString(rec[3])
		if err != nil {
			return fmt.Errorf("record #%d: decode value: %w", line, err)
		}

		value, err := normalizeValue(raw)
		if err != nil {
			return fmt.Errorf("record #%d: %w", line, err)
		}

		batch[string(versionKey(id, path, uint32(height)))] = value
	}

	c.mtx.Lock()
	defer c.mtx.Unlock()

	return c.commit(batch)
}

// splitFullVersionKey splits version key without the prefix byte.
func splitFullVersionKey(k []byte) (string, string, uint32, bool) {
	for i := range k {
		if k[i] == separator {
			path, height, ok := splitVersionKey(k[i+1:])
			if !ok || i == 0 {
				return "", "", 0, false
			}
			return string(k[:i]), path, height, true
		}
	}
	return "", "", 0, false
}
