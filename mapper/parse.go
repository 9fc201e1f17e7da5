package mapper

import (
	"errors"
	"fmt"
	"github.com/bitly/go-simplejson"
	"github.com/disgoorg/snowflake/v2"
	"github.com/mitchellh/mapstructure"
	"time"
)

var ErrMissingField = errors.New("missing field")

// decodeObject fills out from a JSON object, matching fields by their json
// tags. Ids sent as strings and numbers sent as strings are converted.
func decodeObject(js *simplejson.Json, out any) error {
	if _, err := js.Map(); err != nil {
		return fmt.Errorf("expected object: %w", err)
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeHookFunc(time.RFC3339),
		WeaklyTypedInput: true,
		TagName:          "json",
		Result:           out,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(js.Interface())
}

// decodeArray decodes the array at key. An absent or null array yields an
// empty slice.
func decodeArray[T any](js *simplejson.Json, key string) ([]T, error) {
	out := []T{}
	v, ok := present(js, key)
	if !ok {
		return out, nil
	}
	items, err := v.Array()
	if err != nil {
		return nil, fmt.Errorf("field %s: %w", key, err)
	}
	for i := range items {
		var item T
		if err := decodeObject(v.GetIndex(i), &item); err != nil {
			return nil, fmt.Errorf("field %s[%d]: %w", key, i, err)
		}
		out = append(out, item)
	}
	return out, nil
}

// present returns the value at key unless it is absent or null.
func present(js *simplejson.Json, key string) (*simplejson.Json, bool) {
	v, ok := js.CheckGet(key)
	if !ok || v.Interface() == nil {
		return nil, false
	}
	return v, true
}

func optionalID(js *simplejson.Json, key string) (snowflake.ID, bool, error) {
	v, ok := present(js, key)
	if !ok {
		return 0, false, nil
	}
	if s, err := v.String(); err == nil {
		id, err := snowflake.Parse(s)
		if err != nil {
			return 0, false, fmt.Errorf("field %s: %w", key, err)
		}
		return id, true, nil
	}
	n, err := v.Uint64()
	if err != nil {
		return 0, false, fmt.Errorf("field %s: %w", key, err)
	}
	return snowflake.ID(n), true, nil
}

func requiredID(js *simplejson.Json, key string) (snowflake.ID, error) {
	id, ok, err := optionalID(js, key)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrMissingField, key)
	}
	return id, nil
}

// object returns the object at key or fails with ErrMissingField.
func object(js *simplejson.Json, key string) (*simplejson.Json, error) {
	v, ok := present(js, key)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingField, key)
	}
	if _, err := v.Map(); err != nil {
		return nil, fmt.Errorf("field %s: %w", key, err)
	}
	return v, nil
}
