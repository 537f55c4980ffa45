package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/depix/seem_server/internal/pkg/response"
)

func init() {
	// 校验错误里使用请求中的字段名，而不是 Go 字段名
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(wireName)
	}
}

func wireName(f reflect.StructField) string {
	for _, tag := range []string{"form", "json"} {
		name := strings.SplitN(f.Tag.Get(tag), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name != "" {
			return name
		}
	}
	return f.Name
}

var errMalformed = []response.FieldError{{Field: "body", Message: "malformed request"}}

// bindErrors 处理 ShouldBind* 的错误。
// 表单里的数字或布尔值解析失败时 gin 只返回 *strconv.NumError，这里按提交的值找回字段名
func bindErrors(c *gin.Context, obj any, err error) []response.FieldError {
	var numErr *strconv.NumError
	if !errors.As(err, &numErr) {
		return fieldErrors(err)
	}

	values := c.Request.Form
	if values == nil {
		values = c.Request.URL.Query()
	}
	if field := fieldWithValue(values, scalarFields(reflect.TypeOf(obj)), numErr.Num); field != "" {
		return []response.FieldError{{Field: field, Message: numberMessage(numErr)}}
	}
	return errMalformed
}

// fieldErrors 把绑定错误转换成逐字段的错误列表，每个字段只保留第一条
func fieldErrors(err error) []response.FieldError {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return []response.FieldError{{Field: typeErr.Field, Message: kindMessage(typeErr.Type)}}
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return errMalformed
	}

	seen := make(map[string]bool, len(verrs))
	out := make([]response.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		if seen[fe.Field()] {
			continue
		}
		seen[fe.Field()] = true
		out = append(out, response.FieldError{Field: fe.Field(), Message: fieldMessage(fe)})
	}
	return out
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "url":
		return "must be a valid URL"
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at least %s characters", fe.Param())
		}
		return "must be at least " + fe.Param()
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at most %s characters", fe.Param())
		}
		return "must be at most " + fe.Param()
	default:
		return "is invalid"
	}
}

func numberMessage(err *strconv.NumError) string {
	if err.Func == "ParseBool" {
		return "must be true or false"
	}
	return "must be a number"
}

func kindMessage(t reflect.Type) string {
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t == nil {
		return "is invalid"
	}
	switch t.Kind() {
	case reflect.String:
		return "must be a string"
	case reflect.Bool:
		return "must be true or false"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return "must be a number"
	default:
		return "is invalid"
	}
}

// scalarFields 返回数字和布尔类型字段的请求名
func scalarFields(t reflect.Type) map[string]bool {
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	out := map[string]bool{}
	if t == nil || t.Kind() != reflect.Struct {
		return out
	}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.Anonymous {
			for name := range scalarFields(f.Type) {
				out[name] = true
			}
			continue
		}
		ft := f.Type
		for ft.Kind() == reflect.Ptr {
			ft = ft.Elem()
		}
		switch ft.Kind() {
		case reflect.Bool, reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
			reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
			reflect.Float32, reflect.Float64:
			if name := wireName(f); name != "" {
				out[name] = true
			}
		}
	}
	return out
}

func fieldWithValue(values url.Values, candidates map[string]bool, value string) string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if !candidates[k] {
			continue
		}
		for _, v := range values[k] {
			if v == value {
				return k
			}
		}
	}
	return ""
}

// mergeFieldErrors 追加不重复字段的错误
func mergeFieldErrors(errs []response.FieldError, more ...response.FieldError) []response.FieldError {
	for _, m := range more {
		dup := false
		for _, e := range errs {
			if e.Field == m.Field {
				dup = true
				break
			}
		}
		if !dup {
			errs = append(errs, m)
		}
	}
	return errs
}
