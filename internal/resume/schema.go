package resume

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// ErrMalformedDocument 表示输入不是合法的简历文档。
var ErrMalformedDocument = errors.New("malformed resume document")

const documentSchemaTemplate = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["personalInfo", "education", "skills", "projects", "workExperience", "certifications", "hobbies", "selectedTemplate"],
  "properties": {
    "personalInfo": {
      "type": "object",
      "properties": {
        "fullName": {"type": "string"},
        "email": {"type": "string"},
        "phone": {"type": "string"}
      }
    },
    "education": {"type": "array", "items": {"$ref": "#/definitions/education"}},
    "skills": {"type": "string"},
    "projects": {"type": "array", "items": {"$ref": "#/definitions/project"}},
    "workExperience": {"type": "array", "items": {"$ref": "#/definitions/workExperience"}},
    "certifications": {"type": "array", "items": {"$ref": "#/definitions/certification"}},
    "hobbies": {"type": "string"},
    "selectedTemplate": {"enum": [%s]},
    "id": {"type": "integer", "minimum": 0},
    "userId": {"type": "string"},
    "createdAt": {"type": ["string", "null"]},
    "updatedAt": {"type": ["string", "null"]}
  },
  "definitions": {
    "education": {
      "type": "object",
      "properties": {
        "degree": {"type": "string"},
        "year": {"type": "string"},
        "institute": {"type": "string"}
      }
    },
    "project": {
      "type": "object",
      "properties": {
        "title": {"type": "string"},
        "description": {"type": "string"}
      }
    },
    "workExperience": {
      "type": "object",
      "properties": {
        "jobTitle": {"type": "string"},
        "duration": {"type": "string"},
        "description": {"type": "string"}
      }
    },
    "certification": {
      "type": "object",
      "properties": {
        "name": {"type": "string"},
        "issuer": {"type": "string"},
        "year": {"type": "string"}
      }
    }
  }
}`

var loadSchema = sync.OnceValues(func() (*gojsonschema.Schema, error) {
	ids := make([]string, 0, len(catalogue))
	for _, info := range catalogue {
		ids = append(ids, fmt.Sprintf("%q", info.ID))
	}
	raw := fmt.Sprintf(documentSchemaTemplate, strings.Join(ids, ", "))
	return gojsonschema.NewSchema(gojsonschema.NewStringLoader(raw))
})

// Decode 先用 JSON Schema 校验，再反序列化为 Document。
// 任何不合法输入都返回 ErrMalformedDocument。
func Decode(raw []byte) (Document, error) {
	schema, err := loadSchema()
	if err != nil {
		return Document{}, fmt.Errorf("compile resume schema: %w", err)
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return Document{}, fmt.Errorf("%w: %s", ErrMalformedDocument, strings.Join(msgs, "; "))
	}

	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}
	doc.normalize()
	return doc, nil
}
