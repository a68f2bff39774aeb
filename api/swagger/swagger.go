package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Canvas Sync API",
        "description": "Configuration-driven Canvas course data sync service",
        "version": "0.1.0"
    },
    "basePath": "/",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Sync", "description": "Sync pipeline runs and configuration"},
        {"name": "Relationships", "description": "Cross-entity reads and integrity tooling"},
        {"name": "Reports", "description": "Downloadable sync run reports"},
        {"name": "Auth", "description": "Token exchange"}
    ],
    "paths": {
        "/health": {
            "get": {
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/ready": {
            "get": {
                "summary": "Readiness check including database connectivity",
                "responses": {
                    "200": {"description": "Ready"},
                    "503": {"description": "Database unreachable"}
                }
            }
        },
        "/auth/token": {
            "post": {
                "tags": ["Auth"],
                "summary": "Exchange the provisioned API key for a bearer token",
                "parameters": [
                    {"name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/TokenRequest"}}
                ],
                "responses": {
                    "200": {"description": "Token issued"},
                    "401": {"description": "Invalid API key"}
                }
            }
        },
        "/sync": {
            "post": {
                "tags": ["Sync"],
                "summary": "Run a sync synchronously",
                "description": "Fetches the course document, validates the transformation config, transforms entities and writes them in one transaction. Mode full replaces everything; mode incremental filters by the since timestamp and resolves conflicts per the strategy.",
                "parameters": [
                    {"name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SyncRequest"}}
                ],
                "responses": {
                    "200": {"description": "Sync result"},
                    "400": {"description": "Invalid request or config"},
                    "409": {"description": "Integrity violation, run rolled back"},
                    "502": {"description": "Canvas fetch failed"}
                }
            }
        },
        "/sync/async": {
            "post": {
                "tags": ["Sync"],
                "summary": "Enqueue a sync run",
                "parameters": [
                    {"name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SyncRequest"}}
                ],
                "responses": {
                    "202": {"description": "Run accepted, poll by id"}
                }
            }
        },
        "/sync/runs/{id}": {
            "get": {
                "tags": ["Sync"],
                "summary": "Inspect one sync run",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Run with result when finished"},
                    "404": {"description": "Unknown run id"}
                }
            }
        },
        "/sync/runs/{id}/report": {
            "get": {
                "tags": ["Reports"],
                "summary": "Download a run report",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]}
                ],
                "responses": {
                    "200": {"description": "Rendered report"},
                    "404": {"description": "Unknown run or no recorded result"}
                }
            }
        },
        "/sync/config/validate": {
            "post": {
                "tags": ["Sync"],
                "summary": "Validate a transformation config without running anything",
                "parameters": [
                    {"name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/TransformConfig"}}
                ],
                "responses": {
                    "200": {"description": "Config is usable"},
                    "422": {"description": "Config has errors"}
                }
            }
        },
        "/students/{id}/enrollments": {
            "get": {
                "tags": ["Relationships"],
                "summary": "List a student's enrollments with course names",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "Enrollment details"}
                }
            }
        },
        "/students/{id}/performance": {
            "get": {
                "tags": ["Relationships"],
                "summary": "Per-course performance rollup for a student",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "Performance rows"}
                }
            }
        },
        "/courses/{id}/enrollments": {
            "get": {
                "tags": ["Relationships"],
                "summary": "List a course's enrollments with student names",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "Enrollment details"}
                }
            }
        },
        "/courses/{id}/assignments": {
            "get": {
                "tags": ["Relationships"],
                "summary": "List a course's assignments",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "Assignments"}
                }
            }
        },
        "/integrity": {
            "get": {
                "tags": ["Relationships"],
                "summary": "Run referential integrity checks",
                "responses": {
                    "200": {"description": "Violations, empty when consistent"}
                }
            }
        },
        "/integrity/repair": {
            "post": {
                "tags": ["Relationships"],
                "summary": "Report violations and optionally delete orphaned rows",
                "parameters": [
                    {"name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RepairRequest"}}
                ],
                "responses": {
                    "200": {"description": "Repair report"}
                }
            }
        }
    },
    "definitions": {
        "TokenRequest": {
            "type": "object",
            "required": ["api_key"],
            "properties": {
                "api_key": {"type": "string"}
            }
        },
        "SyncRequest": {
            "type": "object",
            "required": ["course_id"],
            "properties": {
                "course_id": {"type": "string"},
                "mode": {"type": "string", "enum": ["full", "incremental"]},
                "since": {"type": "string", "format": "date-time"},
                "strategy": {"type": "string", "enum": ["canvas_wins", "local_wins", "merge"]},
                "validate_integrity": {"type": "boolean"},
                "config": {"$ref": "#/definitions/TransformConfig"}
            }
        },
        "TransformConfig": {
            "type": "object",
            "properties": {
                "entities": {"type": "object", "additionalProperties": {"type": "boolean"}},
                "fields": {
                    "type": "object",
                    "additionalProperties": {"type": "object", "additionalProperties": {"type": "boolean"}}
                }
            }
        },
        "RepairRequest": {
            "type": "object",
            "properties": {
                "delete_orphans": {"type": "boolean"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"type": "object"},
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
