package store

import (
	"encoding/json"
	"fmt"
)

// Merge returns a copy of rec with patch laid over its fields: every field in
// the patch overwrites or is appended in patch order, absent fields are kept.
// The id and parentKey fields are handled by policy and never reach Fields.
// Root kinds pass an empty parentKey.
func Merge(rec *Record, patch *Fields, parentKey string, policy KeyPatchPolicy) (*Record, error) {
	out := rec.Clone()

	var mergeErr error
	patch.Each(func(key string, value json.RawMessage) {
		if mergeErr != nil {
			return
		}
		switch {
		case key == IDField:
			mergeErr = checkKeyPatch(patch, key, rec.ID, policy)
		case parentKey != "" && key == parentKey:
			mergeErr = checkKeyPatch(patch, key, rec.ParentID, policy)
		default:
			out.Fields.Set(key, append(json.RawMessage(nil), value...))
		}
	})
	if mergeErr != nil {
		return nil, mergeErr
	}
	return out, nil
}

// checkKeyPatch enforces the policy for a structural field present in a patch.
// Echoing the current value is always accepted.
func checkKeyPatch(patch *Fields, key, current string, policy KeyPatchPolicy) error {
	if policy != KeyPatchReject {
		return nil
	}
	v, err := stringField(patch, key)
	if err != nil {
		return err
	}
	if v != current {
		return fmt.Errorf("%w: %s", ErrImmutableField, key)
	}
	return nil
}
