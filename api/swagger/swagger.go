package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "SMA Gradebook API",
        "description": "Gradebook configurations and grade sheets per course",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "security": [{"BearerAuth": []}],
    "tags": [
        {"name": "Grade Configs", "description": "Weighted rubrics, scoring range, passing threshold and validity window"},
        {"name": "Grades", "description": "Per-date grade sheets and exports"},
        {"name": "Authentication", "description": "Development token issuance"}
    ],
    "paths": {
        "/courses/{slug}/grade-configs": {
            "get": {
                "tags": ["Grade Configs"],
                "summary": "List gradebook configurations of a course",
                "parameters": [
                    {"$ref": "#/parameters/slug"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Grade Configs"],
                "summary": "Create a gradebook configuration",
                "parameters": [
                    {"$ref": "#/parameters/slug"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateGradeConfigRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Role cannot modify grades", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/courses/{slug}/grade-configs/{id}": {
            "get": {
                "tags": ["Grade Configs"],
                "summary": "Get a gradebook configuration",
                "parameters": [
                    {"$ref": "#/parameters/slug"},
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "put": {
                "tags": ["Grade Configs"],
                "summary": "Edit a gradebook configuration in place",
                "description": "Changing criteria, scale or threshold of a configuration with recorded grades requires confirm=true; stored scores are refitted and re-aggregated.",
                "parameters": [
                    {"$ref": "#/parameters/slug"},
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "confirm", "in": "query", "type": "boolean"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateGradeConfigRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Confirmation required", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/courses/{slug}/grades": {
            "get": {
                "tags": ["Grades"],
                "summary": "Grade sheet for a date and configuration",
                "parameters": [
                    {"$ref": "#/parameters/slug"},
                    {"$ref": "#/parameters/date"},
                    {"$ref": "#/parameters/criteriaId"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Grades"],
                "summary": "Save a grade sheet",
                "parameters": [
                    {"$ref": "#/parameters/slug"},
                    {"$ref": "#/parameters/date"},
                    {"$ref": "#/parameters/criteriaId"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SaveGradesRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/courses/{slug}/grades/export": {
            "get": {
                "tags": ["Grades"],
                "summary": "Download a grade sheet",
                "produces": [
                    "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
                    "text/csv",
                    "application/pdf"
                ],
                "parameters": [
                    {"$ref": "#/parameters/slug"},
                    {"$ref": "#/parameters/date"},
                    {"$ref": "#/parameters/criteriaId"},
                    {"name": "format", "in": "query", "type": "string", "enum": ["xlsx", "csv", "pdf"]}
                ],
                "responses": {
                    "200": {"description": "File", "schema": {"type": "file"}}
                }
            }
        },
        "/auth/token": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Issue a development access token",
                "security": [],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/TokenRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/metrics/summary": {
            "get": {
                "summary": "Service counters snapshot",
                "security": [],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "parameters": {
        "slug": {"name": "slug", "in": "path", "required": true, "type": "string"},
        "date": {"name": "date", "in": "query", "required": true, "type": "string", "format": "date"},
        "criteriaId": {"name": "criteriaId", "in": "query", "required": true, "type": "string"}
    },
    "definitions": {
        "Criterion": {
            "type": "object",
            "properties": {
                "name": {"type": "string", "maxLength": 15},
                "weight_percent": {"type": "integer", "minimum": 0, "maximum": 100}
            },
            "required": ["name", "weight_percent"]
        },
        "CreateGradeConfigRequest": {
            "type": "object",
            "properties": {
                "name": {"type": "string", "maxLength": 50},
                "criteria": {"type": "array", "items": {"$ref": "#/definitions/Criterion"}},
                "scoring_range_max": {"type": "integer", "minimum": 1},
                "passing_threshold_percent": {"type": "integer", "minimum": 0, "maximum": 100},
                "valid_from": {"type": "string", "format": "date"},
                "valid_to": {"type": "string", "format": "date"},
                "name_max_length": {"type": "integer"}
            },
            "required": ["name", "criteria", "scoring_range_max", "valid_from", "valid_to"]
        },
        "UpdateGradeConfigRequest": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "criteria": {"type": "array", "items": {"$ref": "#/definitions/Criterion"}},
                "scoring_range_max": {"type": "integer"},
                "passing_threshold_percent": {"type": "integer"},
                "valid_from": {"type": "string", "format": "date"},
                "valid_to": {"type": "string", "format": "date"}
            }
        },
        "StudentScoreRequest": {
            "type": "object",
            "properties": {
                "student_id": {"type": "string"},
                "raw_scores": {"type": "array", "items": {"type": "integer"}}
            },
            "required": ["student_id", "raw_scores"]
        },
        "SaveGradesRequest": {
            "type": "object",
            "properties": {
                "scores": {"type": "array", "items": {"$ref": "#/definitions/StudentScoreRequest"}}
            },
            "required": ["scores"]
        },
        "TokenRequest": {
            "type": "object",
            "properties": {
                "user_id": {"type": "string"},
                "role": {"type": "string", "enum": ["SUPERADMIN", "ADMIN", "TEACHER", "STUDENT"]}
            },
            "required": ["user_id", "role"]
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"},
                "details": {"type": "object"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
