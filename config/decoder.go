package config

import (
	"encoding/json"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"gopkg.in/ini.v1"
	"gopkg.in/yaml.v3"
)

var ErrUnsupportedFormat = errors.New("unsupported config format")

// Decoder 把配置文件内容解码为通用的 map 结构
type Decoder interface {
	Decode(data []byte) (map[string]any, error)
}

type JSONDecoder struct{}

func (JSONDecoder) Decode(data []byte) (map[string]any, error) {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, errors.Wrap(err, "json.Unmarshal failed")
	}
	return m, nil
}

type YamlDecoder struct{}

func (YamlDecoder) Decode(data []byte) (map[string]any, error) {
	var m map[string]any
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, errors.Wrap(err, "yaml.Unmarshal failed")
	}
	return m, nil
}

type TomlDecoder struct{}

func (TomlDecoder) Decode(data []byte) (map[string]any, error) {
	var m map[string]any
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, errors.Wrap(err, "toml.Unmarshal failed")
	}
	return m, nil
}

// IniDecoder 默认 section 的键放在顶层，其它 section 作为子 map
type IniDecoder struct{}

func (IniDecoder) Decode(data []byte) (map[string]any, error) {
	f, err := ini.LoadSources(ini.LoadOptions{
		AllowBooleanKeys:         true,
		SpaceBeforeInlineComment: true,
	}, data)
	if err != nil {
		return nil, errors.Wrap(err, "ini.LoadSources failed")
	}

	m := make(map[string]any)
	for _, section := range f.Sections() {
		target := m
		if section.Name() != ini.DefaultSection {
			sub := make(map[string]any)
			m[section.Name()] = sub
			target = sub
		}
		for _, key := range section.Keys() {
			target[key.Name()] = key.Value()
		}
	}
	return m, nil
}

// DecoderForFile 根据文件扩展名选择解码器
func DecoderForFile(filename string) (Decoder, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".json":
		return JSONDecoder{}, nil
	case ".yaml", ".yml":
		return YamlDecoder{}, nil
	case ".toml":
		return TomlDecoder{}, nil
	case ".ini":
		return IniDecoder{}, nil
	default:
		return nil, errors.Wrapf(ErrUnsupportedFormat, "file %s", filename)
	}
}
