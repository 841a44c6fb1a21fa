package config

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// Bind 把解码后的 map 按 cfg tag 写入结构体，未出现的键保持原值
func Bind(src map[string]any, object any) error {
	rv := reflect.ValueOf(object)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return fmt.Errorf("object must be a non-nil pointer")
	}
	return bindValue(src, rv.Elem())
}

func bindValue(src any, dst reflect.Value) error {
	if src == nil {
		return nil
	}

	if dst.Kind() == reflect.Ptr {
		if dst.IsNil() {
			dst.Set(reflect.New(dst.Type().Elem()))
		}
		return bindValue(src, dst.Elem())
	}

	sv := reflect.ValueOf(src)
	if dst.Type() == reflect.TypeOf(time.Duration(0)) {
		return bindDuration(sv, dst)
	}
	if sv.Type().AssignableTo(dst.Type()) {
		dst.Set(sv)
		return nil
	}

	switch dst.Kind() {
	case reflect.Struct:
		return bindStruct(sv, dst)
	case reflect.Map:
		return bindMap(sv, dst)
	case reflect.Slice:
		return bindSlice(sv, dst)
	case reflect.Interface:
		if dst.NumMethod() == 0 {
			dst.Set(sv)
			return nil
		}
	}

	// ini 解码出的值都是字符串
	if sv.Kind() == reflect.String {
		return bindString(sv.String(), dst)
	}
	if dst.Kind() == reflect.String {
		dst.SetString(fmt.Sprint(src))
		return nil
	}
	if sv.Type().ConvertibleTo(dst.Type()) {
		dst.Set(sv.Convert(dst.Type()))
		return nil
	}
	return fmt.Errorf("cannot convert %v to %v", sv.Type(), dst.Type())
}

func bindStruct(sv reflect.Value, dst reflect.Value) error {
	if sv.Kind() != reflect.Map {
		return fmt.Errorf("cannot convert %v to struct %v", sv.Type(), dst.Type())
	}

	values := make(map[string]reflect.Value, sv.Len())
	for _, key := range sv.MapKeys() {
		values[fmt.Sprint(key.Interface())] = sv.MapIndex(key)
	}

	dt := dst.Type()
	for i := 0; i < dt.NumField(); i++ {
		field := dt.Field(i)
		if !field.IsExported() {
			continue
		}
		name := field.Name
		if tag := field.Tag.Get("cfg"); tag != "" {
			if tag == "-" {
				continue
			}
			name = tag
		}
		value, ok := values[name]
		if !ok {
			continue
		}
		if err := bindValue(value.Interface(), dst.Field(i)); err != nil {
			return fmt.Errorf("field %s: %w", name, err)
		}
	}
	return nil
}

func bindMap(sv reflect.Value, dst reflect.Value) error {
	if sv.Kind() != reflect.Map {
		return fmt.Errorf("cannot convert %v to map", sv.Type())
	}
	if dst.IsNil() {
		dst.Set(reflect.MakeMap(dst.Type()))
	}
	for _, key := range sv.MapKeys() {
		item := reflect.New(dst.Type().Elem()).Elem()
		if err := bindValue(sv.MapIndex(key).Interface(), item); err != nil {
			return err
		}
		k := reflect.ValueOf(fmt.Sprint(key.Interface()))
		if !k.Type().ConvertibleTo(dst.Type().Key()) {
			return fmt.Errorf("cannot convert key %v to %v", k.Type(), dst.Type().Key())
		}
		dst.SetMapIndex(k.Convert(dst.Type().Key()), item)
	}
	return nil
}

func bindSlice(sv reflect.Value, dst reflect.Value) error {
	if sv.Kind() == reflect.String {
		parts := strings.Split(sv.String(), ",")
		items := make([]any, len(parts))
		for i, part := range parts {
			items[i] = strings.TrimSpace(part)
		}
		sv = reflect.ValueOf(items)
	}
	if sv.Kind() != reflect.Slice && sv.Kind() != reflect.Array {
		return fmt.Errorf("cannot convert %v to slice", sv.Type())
	}
	out := reflect.MakeSlice(dst.Type(), sv.Len(), sv.Len())
	for i := 0; i < sv.Len(); i++ {
		if err := bindValue(sv.Index(i).Interface(), out.Index(i)); err != nil {
			return err
		}
	}
	dst.Set(out)
	return nil
}

func bindDuration(sv reflect.Value, dst reflect.Value) error {
	switch sv.Kind() {
	case reflect.String:
		d, err := time.ParseDuration(sv.String())
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", sv.String(), err)
		}
		dst.SetInt(int64(d))
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		dst.SetInt(sv.Int())
	case reflect.Float32, reflect.Float64:
		dst.SetInt(int64(sv.Float()))
	default:
		return fmt.Errorf("cannot convert %v to duration", sv.Type())
	}
	return nil
}

func bindString(s string, dst reflect.Value) error {
	switch dst.Kind() {
	case reflect.String:
		dst.SetString(s)
	case reflect.Bool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return fmt.Errorf("invalid bool value %q: %w", s, err)
		}
		dst.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(s, 0, dst.Type().Bits())
		if err != nil {
			return fmt.Errorf("invalid int value %q: %w", s, err)
		}
		dst.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(s, 0, dst.Type().Bits())
		if err != nil {
			return fmt.Errorf("invalid uint value %q: %w", s, err)
		}
		dst.SetUint(n)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(s, dst.Type().Bits())
		if err != nil {
			return fmt.Errorf("invalid float value %q: %w", s, err)
		}
		dst.SetFloat(f)
	default:
		return fmt.Errorf("cannot convert string to %v", dst.Type())
	}
	return nil
}
