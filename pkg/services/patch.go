package services

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	jsonpatch "github.com/evanphx/json-patch/v5"

	"github.com/ekaya-inc/scorecard/pkg/apperrors"
)

// applyPatch applies an RFC 6902 patch to the JSON form of doc and decodes
// the result back into doc. Only the fields of T can be patched; a failed
// test operation is a conflict, every other failure a validation error.
func applyPatch[T any](doc *T, patch jsonpatch.Patch) error {
	original, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode patch target: %w", err)
	}

	patched, err := patch.Apply(original)
	if err != nil {
		if errors.Is(err, jsonpatch.ErrTestFailed) {
			return fmt.Errorf("%w: %v", apperrors.ErrConflict, err)
		}
		return fmt.Errorf("%w: %v", apperrors.ErrValidation, err)
	}

	var result T
	dec := json.NewDecoder(bytes.NewReader(patched))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&result); err != nil {
		return fmt.Errorf("%w: patched document: %v", apperrors.ErrValidation, err)
	}
	*doc = result
	return nil
}
