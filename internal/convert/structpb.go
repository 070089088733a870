package convert

import (
	"encoding/json"

	"github.com/and161185/ecoquest/internal/errs"
	"google.golang.org/protobuf/types/known/structpb"
)

// ToStruct encodes v through its JSON form.
func ToStruct(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	st := &structpb.Struct{}
	if err := st.UnmarshalJSON(b); err != nil {
		return nil, err
	}
	return st, nil
}

// FromStruct decodes st into dst. A nil message leaves dst untouched.
func FromStruct(st *structpb.Struct, dst any) error {
	if st == nil {
		return nil
	}
	b, err := st.MarshalJSON()
	if err != nil {
		return errs.Invalid("malformed message")
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return errs.Invalid("malformed message: %v", err)
	}
	return nil
}
