package parser

import (
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// resumeShapeSchema 模型输出的结构约束。
// 只校验形状：标量允许字符串/数字/null，列表允许数组或单个字符串。
const resumeShapeSchema = `{
  "type": "object",
  "definitions": {
    "scalar": {"type": ["string", "number", "boolean", "null"]},
    "list": {
      "oneOf": [
        {"type": "array", "items": {"type": ["string", "number", "null"]}},
        {"type": ["string", "null"]}
      ]
    },
    "school": {
      "type": ["object", "null"],
      "properties": {
        "school": {"$ref": "#/definitions/scalar"},
        "location": {"$ref": "#/definitions/scalar"},
        "year": {"$ref": "#/definitions/scalar"},
        "percentage": {"$ref": "#/definitions/scalar"}
      }
    }
  },
  "properties": {
    "name": {"$ref": "#/definitions/scalar"},
    "email": {"$ref": "#/definitions/scalar"},
    "phone": {"$ref": "#/definitions/scalar"},
    "linkedin": {"$ref": "#/definitions/scalar"},
    "github": {"$ref": "#/definitions/scalar"},
    "leetcode": {"$ref": "#/definitions/scalar"},
    "codechef": {"$ref": "#/definitions/scalar"},
    "location": {"$ref": "#/definitions/scalar"},
    "languages": {"$ref": "#/definitions/list"},
    "education": {
      "type": ["object", "null"],
      "properties": {
        "10th": {"$ref": "#/definitions/school"},
        "12th": {"$ref": "#/definitions/school"},
        "bachelor": {
          "type": ["object", "null"],
          "properties": {
            "institute": {"$ref": "#/definitions/scalar"},
            "location": {"$ref": "#/definitions/scalar"},
            "degree": {"$ref": "#/definitions/scalar"},
            "expected_graduation": {"$ref": "#/definitions/scalar"},
            "cgpa": {"$ref": "#/definitions/scalar"}
          }
        }
      }
    },
    "skills": {
      "type": ["object", "null"],
      "properties": {
        "technical": {"$ref": "#/definitions/list"},
        "soft": {"$ref": "#/definitions/list"}
      }
    },
    "certificates": {"$ref": "#/definitions/list"},
    "experience": {"$ref": "#/definitions/list"},
    "projects": {"$ref": "#/definitions/list"},
    "role_match": {"$ref": "#/definitions/scalar"},
    "summary": {"$ref": "#/definitions/scalar"}
  }
}`

var (
	shapeSchemaOnce sync.Once
	shapeSchema     *gojsonschema.Schema
	shapeSchemaErr  error
)

func loadShapeSchema() (*gojsonschema.Schema, error) {
	shapeSchemaOnce.Do(func() {
		shapeSchema, shapeSchemaErr = gojsonschema.NewSchema(gojsonschema.NewStringLoader(resumeShapeSchema))
	})
	return shapeSchema, shapeSchemaErr
}

// validateShape 校验 JSON 文本是否符合简历记录的结构
func validateShape(jsonText string) error {
	schema, err := loadShapeSchema()
	if err != nil {
		return fmt.Errorf("加载结构约束失败: %w", err)
	}
	result, err := schema.Validate(gojsonschema.NewStringLoader(jsonText))
	if err != nil {
		return err
	}
	if result.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		field := desc.Field()
		if field == "" {
			field = "(root)"
		}
		msgs = append(msgs, field+": "+desc.Description())
	}
	return fmt.Errorf("结构不符: %s", strings.Join(msgs, "; "))
}
