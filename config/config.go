package config

import (
	"os"

	"github.com/pkg/errors"
)

// Load 读取配置文件并写入 object
//
// 处理顺序：按扩展名解码 -> 按 cfg tag 绑定 -> 零值字段填充 def 默认值 -> validate 校验
//
// 使用示例：
//
//	var options orm.Options
//	if err := config.Load("orm.yaml", &options); err != nil {
//	    return err
//	}
func Load(filename string, object any) error {
	decoder, err := DecoderForFile(filename)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return errors.Wrapf(err, "os.ReadFile failed, filename [%s]", filename)
	}

	m, err := decoder.Decode(data)
	if err != nil {
		return errors.WithMessagef(err, "decode %s failed", filename)
	}

	if err := Bind(m, object); err != nil {
		return errors.WithMessage(err, "Bind failed")
	}

	return Prepare(object)
}

// Prepare 填充默认值并校验，适用于代码中直接构造的配置
func Prepare(object any) error {
	if err := SetDefaults(object); err != nil {
		return errors.WithMessage(err, "SetDefaults failed")
	}
	if err := Validate(object); err != nil {
		return err
	}
	return nil
}
