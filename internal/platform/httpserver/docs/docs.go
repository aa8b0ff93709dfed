// Package docs registers the swagger document for the contribution API.
//
// The document is maintained by hand in the layout swag emits. Route changes in
// the httpserver package must be mirrored here; the httpserver tests compare
// both.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
	"schemes": {{ marshal .Schemes }},
	"swagger": "2.0",
	"info": {
		"description": "{{escape .Description}}",
		"title": "{{.Title}}",
		"contact": {},
		"version": "{{.Version}}"
	},
	"host": "{{.Host}}",
	"basePath": "{{.BasePath}}",
	"paths": {
		"/contributions/start": {
			"post": {
				"description": "Resumes the caller's pending session for the activity or allocates a fresh batch of work items.",
				"consumes": [
					"application/json"
				],
				"produces": [
					"application/json"
				],
				"tags": [
					"contributions"
				],
				"summary": "Start or resume a contribution session",
				"parameters": [
					{
						"type": "string",
						"description": "Internal user id",
						"name": "X-User-Id",
						"in": "header",
						"required": true
					},
					{
						"type": "string",
						"description": "Corpus account name",
						"name": "X-External-User-Id",
						"in": "header"
					},
					{
						"type": "string",
						"description": "Display language code",
						"name": "X-Display-Language",
						"in": "header"
					},
					{
						"description": "Session request",
						"name": "request",
						"in": "body",
						"required": true,
						"schema": {
							"$ref": "#/definitions/httptransport.StartSessionRequest"
						}
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/httptransport.StartSessionResponse"
						}
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/httptransport.ErrorResponse"
						}
					},
					"401": {
						"description": "Unauthorized",
						"schema": {
							"$ref": "#/definitions/httptransport.ErrorResponse"
						}
					},
					"404": {
						"description": "Not Found",
						"schema": {
							"$ref": "#/definitions/httptransport.ErrorResponse"
						}
					},
					"409": {
						"description": "Conflict",
						"schema": {
							"$ref": "#/definitions/httptransport.ErrorResponse"
						}
					},
					"422": {
						"description": "Unprocessable Entity",
						"schema": {
							"$ref": "#/definitions/httptransport.ErrorResponse"
						}
					},
					"503": {
						"description": "Service Unavailable",
						"schema": {
							"$ref": "#/definitions/httptransport.ErrorResponse"
						}
					}
				}
			}
		},
		"/contributions/end": {
			"post": {
				"description": "Deletes every item of the caller's pending session and ends it.",
				"produces": [
					"application/json"
				],
				"tags": [
					"contributions"
				],
				"summary": "End the current session",
				"parameters": [
					{
						"type": "string",
						"description": "Internal user id",
						"name": "X-User-Id",
						"in": "header",
						"required": true
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/httptransport.EndSessionResponse"
						}
					},
					"401": {
						"description": "Unauthorized",
						"schema": {
							"$ref": "#/definitions/httptransport.ErrorResponse"
						}
					},
					"404": {
						"description": "Not Found",
						"schema": {
							"$ref": "#/definitions/httptransport.ErrorResponse"
						}
					}
				}
			}
		},
		"/contributions/current": {
			"get": {
				"produces": [
					"application/json"
				],
				"tags": [
					"contributions"
				],
				"summary": "Get the current session",
				"parameters": [
					{
						"type": "string",
						"description": "Internal user id",
						"name": "X-User-Id",
						"in": "header",
						"required": true
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/httptransport.CurrentSessionResponse"
						}
					},
					"401": {
						"description": "Unauthorized",
						"schema": {
							"$ref": "#/definitions/httptransport.ErrorResponse"
						}
					},
					"404": {
						"description": "Not Found",
						"schema": {
							"$ref": "#/definitions/httptransport.ErrorResponse"
						}
					}
				}
			}
		},
		"/contributions/languages": {
			"get": {
				"produces": [
					"application/json"
				],
				"tags": [
					"contributions"
				],
				"summary": "List contribution languages",
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/httptransport.ListLanguagesResponse"
						}
					}
				}
			}
		},
		"/contributions/{session_id}/{kind}/{item_id}": {
			"get": {
				"description": "Returns the item with its lexeme and every referenced entity resolved to a label.",
				"produces": [
					"application/json"
				],
				"tags": [
					"contributions"
				],
				"summary": "Get an enriched work item",
				"parameters": [
					{
						"type": "string",
						"description": "Internal user id",
						"name": "X-User-Id",
						"in": "header",
						"required": true
					},
					{
						"type": "string",
						"description": "Session id",
						"name": "session_id",
						"in": "path",
						"required": true
					},
					{
						"type": "string",
						"description": "Activity: connect, script or hyphenation",
						"name": "kind",
						"in": "path",
						"required": true
					},
					{
						"type": "string",
						"description": "Item id",
						"name": "item_id",
						"in": "path",
						"required": true
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/httptransport.ItemDetailResponse"
						}
					},
					"401": {
						"description": "Unauthorized",
						"schema": {
							"$ref": "#/definitions/httptransport.ErrorResponse"
						}
					},
					"404": {
						"description": "Not Found",
						"schema": {
							"$ref": "#/definitions/httptransport.ErrorResponse"
						}
					},
					"502": {
						"description": "Bad Gateway",
						"schema": {
							"$ref": "#/definitions/httptransport.ErrorResponse"
						}
					}
				}
			},
			"put": {
				"security": [
					{
						"BearerAuth": []
					}
				],
				"description": "Applies add, no_item or skip. add writes to the corpus with the caller's access token before the item is completed.",
				"consumes": [
					"application/json"
				],
				"produces": [
					"application/json"
				],
				"tags": [
					"contributions"
				],
				"summary": "Resolve a work item",
				"parameters": [
					{
						"type": "string",
						"description": "Internal user id",
						"name": "X-User-Id",
						"in": "header",
						"required": true
					},
					{
						"type": "string",
						"description": "Session id",
						"name": "session_id",
						"in": "path",
						"required": true
					},
					{
						"type": "string",
						"description": "Activity: connect, script or hyphenation",
						"name": "kind",
						"in": "path",
						"required": true
					},
					{
						"type": "string",
						"description": "Item id",
						"name": "item_id",
						"in": "path",
						"required": true
					},
					{
						"description": "Action and payload",
						"name": "request",
						"in": "body",
						"required": true,
						"schema": {
							"$ref": "#/definitions/httptransport.UpdateItemRequest"
						}
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/httptransport.UpdateItemResponse"
						}
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/httptransport.ErrorResponse"
						}
					},
					"401": {
						"description": "Unauthorized",
						"schema": {
							"$ref": "#/definitions/httptransport.ErrorResponse"
						}
					},
					"404": {
						"description": "Not Found",
						"schema": {
							"$ref": "#/definitions/httptransport.ErrorResponse"
						}
					},
					"502": {
						"description": "Bad Gateway",
						"schema": {
							"$ref": "#/definitions/httptransport.ErrorResponse"
						}
					}
				}
			}
		}
	},
	"definitions": {
		"httptransport.CurrentSessionResponse": {
			"type": "object",
			"properties": {
				"active_activity": {
					"type": "string"
				},
				"activity": {
					"type": "string"
				},
				"item_count": {
					"type": "integer"
				},
				"language_code": {
					"type": "string"
				},
				"pending_count": {
					"type": "integer"
				},
				"session_id": {
					"type": "string"
				},
				"started_at": {
					"type": "string"
				},
				"variant_code": {
					"type": "string"
				}
			}
		},
		"httptransport.EndSessionResponse": {
			"type": "object"
		},
		"httptransport.EntityRefDTO": {
			"type": "object",
			"properties": {
				"id": {
					"type": "string"
				},
				"label": {
					"type": "string"
				}
			}
		},
		"httptransport.ErrorResponse": {
			"type": "object",
			"properties": {
				"code": {
					"type": "string"
				},
				"message": {
					"type": "string"
				}
			}
		},
		"httptransport.FormDTO": {
			"type": "object",
			"properties": {
				"form_id": {
					"type": "string"
				},
				"grammatical_features": {
					"type": "array",
					"items": {
						"$ref": "#/definitions/httptransport.EntityRefDTO"
					}
				},
				"hyphenations": {
					"type": "array",
					"items": {
						"type": "string"
					}
				},
				"representation": {
					"type": "string"
				}
			}
		},
		"httptransport.ItemDTO": {
			"type": "object",
			"properties": {
				"activity": {
					"type": "string"
				},
				"category_label": {
					"type": "string"
				},
				"category_qid": {
					"type": "string"
				},
				"form_id": {
					"type": "string"
				},
				"gloss": {
					"type": "string"
				},
				"images": {
					"type": "array",
					"items": {
						"type": "string"
					}
				},
				"item_id": {
					"type": "string"
				},
				"lemma": {
					"type": "string"
				},
				"lexeme_id": {
					"type": "string"
				},
				"ordinal": {
					"type": "integer"
				},
				"result": {
					"type": "string"
				},
				"sense_id": {
					"type": "string"
				},
				"session_id": {
					"type": "string"
				},
				"status": {
					"type": "string"
				},
				"sub_id": {
					"type": "string"
				}
			}
		},
		"httptransport.ItemDetailResponse": {
			"type": "object",
			"properties": {
				"item": {
					"$ref": "#/definitions/httptransport.ItemDTO"
				},
				"lexeme": {
					"$ref": "#/definitions/httptransport.LexemeDTO"
				}
			}
		},
		"httptransport.ItemPayloadDTO": {
			"type": "object",
			"properties": {
				"item_id": {
					"type": "string"
				},
				"segments": {
					"type": "array",
					"items": {
						"type": "string"
					}
				},
				"text": {
					"type": "string"
				}
			}
		},
		"httptransport.LanguageActivityDTO": {
			"type": "object",
			"properties": {
				"activity": {
					"type": "string"
				},
				"variant_code": {
					"type": "string"
				}
			}
		},
		"httptransport.LanguageDTO": {
			"type": "object",
			"properties": {
				"activities": {
					"type": "array",
					"items": {
						"$ref": "#/definitions/httptransport.LanguageActivityDTO"
					}
				},
				"code": {
					"type": "string"
				},
				"name": {
					"type": "string"
				},
				"qid": {
					"type": "string"
				}
			}
		},
		"httptransport.LexemeDTO": {
			"type": "object",
			"properties": {
				"category": {
					"$ref": "#/definitions/httptransport.EntityRefDTO"
				},
				"characteristics": {
					"type": "array",
					"items": {
						"$ref": "#/definitions/httptransport.EntityRefDTO"
					}
				},
				"combines_lexemes": {
					"type": "array",
					"items": {
						"$ref": "#/definitions/httptransport.EntityRefDTO"
					}
				},
				"forms": {
					"type": "array",
					"items": {
						"$ref": "#/definitions/httptransport.FormDTO"
					}
				},
				"language": {
					"$ref": "#/definitions/httptransport.EntityRefDTO"
				},
				"lemma": {
					"type": "string"
				},
				"lemmas": {
					"type": "object",
					"additionalProperties": {
						"type": "string"
					}
				},
				"lexeme_id": {
					"type": "string"
				},
				"senses": {
					"type": "array",
					"items": {
						"$ref": "#/definitions/httptransport.SenseDTO"
					}
				},
				"usage_examples": {
					"type": "array",
					"items": {
						"$ref": "#/definitions/httptransport.UsageExampleDTO"
					}
				}
			}
		},
		"httptransport.ListLanguagesResponse": {
			"type": "object",
			"properties": {
				"items": {
					"type": "array",
					"items": {
						"$ref": "#/definitions/httptransport.LanguageDTO"
					}
				}
			}
		},
		"httptransport.SenseDTO": {
			"type": "object",
			"properties": {
				"antonyms": {
					"type": "array",
					"items": {
						"$ref": "#/definitions/httptransport.EntityRefDTO"
					}
				},
				"fields_of_usage": {
					"type": "array",
					"items": {
						"$ref": "#/definitions/httptransport.EntityRefDTO"
					}
				},
				"genders": {
					"type": "array",
					"items": {
						"$ref": "#/definitions/httptransport.EntityRefDTO"
					}
				},
				"gloss": {
					"type": "string"
				},
				"gloss_quotes": {
					"type": "array",
					"items": {
						"type": "string"
					}
				},
				"images": {
					"type": "array",
					"items": {
						"type": "string"
					}
				},
				"items_for_sense": {
					"type": "array",
					"items": {
						"$ref": "#/definitions/httptransport.EntityRefDTO"
					}
				},
				"language_styles": {
					"type": "array",
					"items": {
						"$ref": "#/definitions/httptransport.EntityRefDTO"
					}
				},
				"locations": {
					"type": "array",
					"items": {
						"$ref": "#/definitions/httptransport.EntityRefDTO"
					}
				},
				"sense_id": {
					"type": "string"
				},
				"synonyms": {
					"type": "array",
					"items": {
						"$ref": "#/definitions/httptransport.EntityRefDTO"
					}
				}
			}
		},
		"httptransport.StartSessionRequest": {
			"type": "object",
			"properties": {
				"activity": {
					"type": "string"
				},
				"language_code": {
					"type": "string"
				}
			}
		},
		"httptransport.StartSessionResponse": {
			"type": "object",
			"properties": {
				"activity": {
					"type": "string"
				},
				"items": {
					"type": "array",
					"items": {
						"$ref": "#/definitions/httptransport.ItemDTO"
					}
				},
				"language_code": {
					"type": "string"
				},
				"resumed": {
					"type": "boolean"
				},
				"session_id": {
					"type": "string"
				},
				"variant_code": {
					"type": "string"
				}
			}
		},
		"httptransport.UpdateItemRequest": {
			"type": "object",
			"properties": {
				"action": {
					"type": "string"
				},
				"payload": {
					"$ref": "#/definitions/httptransport.ItemPayloadDTO"
				}
			}
		},
		"httptransport.UpdateItemResponse": {
			"type": "object",
			"properties": {
				"item": {
					"$ref": "#/definitions/httptransport.ItemDTO"
				}
			}
		},
		"httptransport.UsageExampleDTO": {
			"type": "object",
			"properties": {
				"demonstrates_form": {
					"$ref": "#/definitions/httptransport.EntityRefDTO"
				},
				"demonstrates_sense": {
					"$ref": "#/definitions/httptransport.EntityRefDTO"
				},
				"language": {
					"type": "string"
				},
				"text": {
					"type": "string"
				}
			}
		}
	},
	"securityDefinitions": {
		"BearerAuth": {
			"type": "apiKey",
			"name": "Authorization",
			"in": "header"
		}
	}
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "lexcontrib contribution API",
	Description:      "Allocates lexeme work items to contributors and records their contributions.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
