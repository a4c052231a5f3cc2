package persist

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/John-Robertt/opcgdb/internal/domain"
	"github.com/John-Robertt/opcgdb/internal/infra/fsx"
)

const (
	SetFilePrefix = "one_piece_cards_"
	SetFileSuffix = ".json"
)

// SetFileName 返回来源对应的输出文件名：one_piece_cards_<lang>_<set>.json
func SetFileName(lang, set string) string {
	return SetFilePrefix + lang + "_" + set + SetFileSuffix
}

// MarshalSet 以 4 空格缩进输出 JSON 数组，非 ASCII 字符与 <>& 原样保留。
// nil/空输入输出 []。
func MarshalSet(records []domain.CardRecord) ([]byte, error) {
	if records == nil {
		records = []domain.CardRecord{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(records); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// WriteSet 把整组记录原子写入 dir，覆盖上一次的结果。返回文件名。
func WriteSet(dir, lang, set string, records []domain.CardRecord) (string, error) {
	name := SetFileName(lang, set)
	if strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("非法输出文件名：%q", name)
	}
	b, err := MarshalSet(records)
	if err != nil {
		return "", err
	}
	if err := fsx.WriteFileAtomic(dir, name, b); err != nil {
		return "", err
	}
	return name, nil
}
