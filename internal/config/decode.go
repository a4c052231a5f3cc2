package config

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/titanous/json5"

	"github.com/John-Robertt/opcgdb/internal/domain"
)

// decode 按扩展名解码配置：.toml 用 TOML，其余（.json/.json5/无扩展名）按 JSON5 处理。
// JSON5 是 JSON 的超集，允许注释与尾逗号。
func decode(path string, b []byte) (FileConfig, error) {
	if len(bytes.TrimSpace(b)) == 0 {
		return FileConfig{}, fmt.Errorf("配置文件为空")
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return decodeTOML(b)
	default:
		return decodeJSON5(b)
	}
}

func decodeTOML(b []byte) (FileConfig, error) {
	var fc FileConfig
	md, err := toml.Decode(string(b), &fc)
	if err != nil {
		return FileConfig{}, err
	}
	if und := md.Undecoded(); len(und) > 0 {
		keys := make([]string, 0, len(und))
		for _, k := range und {
			keys = append(keys, k.String())
		}
		return FileConfig{}, fmt.Errorf("未知字段：%s", strings.Join(keys, ", "))
	}
	return fc, nil
}

// decodeJSON5 同时接受两种形态：来源数组，或带 sources 的对象。
func decodeJSON5(b []byte) (FileConfig, error) {
	var probe any
	if err := json5.Unmarshal(b, &probe); err != nil {
		return FileConfig{}, err
	}

	switch probe.(type) {
	case []any:
		var sources []domain.SourceConfig
		if err := json5.Unmarshal(b, &sources); err != nil {
			return FileConfig{}, err
		}
		return FileConfig{Sources: sources}, nil
	case map[string]any:
		var fc FileConfig
		if err := json5.Unmarshal(b, &fc); err != nil {
			return FileConfig{}, err
		}
		return fc, nil
	default:
		return FileConfig{}, fmt.Errorf("顶层必须是数组或对象，实际是 %T", probe)
	}
}
