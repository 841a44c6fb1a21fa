package config

import (
	"reflect"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// SetDefaults 零值字段填入 def tag 的值，已分配的嵌套结构体递归处理，nil 指针保持 nil
func SetDefaults(object any) error {
	rv := reflect.ValueOf(object)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return errors.New("object must be a non-nil pointer")
	}
	return setDefaults(rv.Elem())
}

func setDefaults(rv reflect.Value) error {
	if rv.Kind() != reflect.Struct || rv.Type() == reflect.TypeOf(time.Time{}) {
		return nil
	}

	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		field, value := rt.Field(i), rv.Field(i)
		if !value.CanSet() {
			continue
		}

		nested := value
		if nested.Kind() == reflect.Ptr && !nested.IsNil() {
			nested = nested.Elem()
		}
		if err := setDefaults(nested); err != nil {
			return errors.WithMessagef(err, "field %s", field.Name)
		}

		def, ok := field.Tag.Lookup("def")
		if !ok || def == "" || !value.IsZero() {
			continue
		}
		if err := setDefault(value, def); err != nil {
			return errors.WithMessagef(err, "default of field %s", field.Name)
		}
	}
	return nil
}

// setDefault 标量按字符串绑定规则解析，字符串切片以逗号分隔
func setDefault(value reflect.Value, def string) error {
	if value.Kind() == reflect.Slice && value.Type().Elem().Kind() == reflect.String {
		parts := strings.Split(def, ",")
		items := reflect.MakeSlice(value.Type(), len(parts), len(parts))
		for i, part := range parts {
			items.Index(i).SetString(strings.TrimSpace(part))
		}
		value.Set(items)
		return nil
	}
	if value.Type() == reflect.TypeOf(time.Duration(0)) {
		return bindDuration(reflect.ValueOf(def), value)
	}
	return bindString(def, value)
}
