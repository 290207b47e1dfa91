package codec

import (
	"github.com/santhosh-tekuri/jsonschema/v5"
)

const pollSchema = `{
  "type": "object",
  "required": ["question", "options"],
  "properties": {
    "question": {"type": "string"},
    "options": {"type": "array", "minItems": 2, "items": {"type": "string"}}
  }
}`

const eventSchema = `{
  "type": "object",
  "required": ["title", "date"],
  "properties": {
    "title": {"type": "string"},
    "date": {"type": "string"},
    "time": {"type": "string"},
    "description": {"type": "string"}
  }
}`

const paymentSchema = `{
  "type": "object",
  "required": ["amount", "reason"],
  "properties": {
    "amount": {"type": "number"},
    "reason": {"type": "string"}
  }
}`

const contactSchema = `{
  "type": "object",
  "required": ["id", "name"],
  "properties": {
    "id": {"type": "string"},
    "name": {"type": "string"},
    "avatarUrl": {"type": "string"}
  }
}`

var schemas = map[Tag]*jsonschema.Schema{
	TagPoll:    jsonschema.MustCompileString("poll.json", pollSchema),
	TagEvent:   jsonschema.MustCompileString("event.json", eventSchema),
	TagPayment: jsonschema.MustCompileString("payment.json", paymentSchema),
	TagContact: jsonschema.MustCompileString("contact.json", contactSchema),
}

func schemaFor(tag Tag) *jsonschema.Schema {
	return schemas[tag]
}
