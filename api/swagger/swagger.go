package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Gakuseki API",
        "description": "Student registry with a temporal enrollment, field and status model",
        "version": "0.1.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Students", "description": "Student directory and temporal records"},
        {"name": "Status", "description": "Student status timeline"},
        {"name": "Promotions", "description": "Year-end bulk promotion"}
    ],
    "paths": {
        "/students": {
            "get": {
                "tags": ["Students"],
                "summary": "List students",
                "parameters": [
                    {"name": "q", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"},
                    {"name": "sort", "in": "query", "type": "string"},
                    {"name": "order", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Students"],
                "summary": "Register a student with the initial enrollment and status interval",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateStudentRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Duplicate registration number", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/students/export": {
            "get": {
                "tags": ["Students"],
                "summary": "Export the active-student roster",
                "parameters": [
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]}
                ],
                "responses": {
                    "200": {"description": "File attachment"}
                }
            }
        },
        "/students/{id}": {
            "get": {
                "tags": ["Students"],
                "summary": "Get the full temporal record for a student",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "patch": {
                "tags": ["Students"],
                "summary": "Propose a field change with an effective date",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ProposeChangeRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Students"],
                "summary": "Delete a student and all owned temporal records",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/students/{id}/status": {
            "get": {
                "tags": ["Status"],
                "summary": "Current status of a student",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Status"],
                "summary": "Transition a student to a new status",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ChangeStatusRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/promotions/plan": {
            "get": {
                "tags": ["Promotions"],
                "summary": "Draft next-year placements for all active students",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/promotions": {
            "post": {
                "tags": ["Promotions"],
                "summary": "Commit a bulk promotion batch, all or nothing",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/PromoteRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Duplicate enrollment or aborted batch", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "Student": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "s_number": {"type": "string"},
                "legal_name": {"type": "string"},
                "alias_name": {"type": "string"},
                "use_alias_flag": {"type": "boolean"},
                "birth_date": {"type": "string"},
                "gender": {"type": "string"},
                "address": {"type": "string"},
                "created_at": {"type": "string"},
                "updated_at": {"type": "string"}
            }
        },
        "EnrollmentRecord": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "student_id": {"type": "string"},
                "fiscal_year": {"type": "integer"},
                "grade": {"type": "integer"},
                "class_label": {"type": "string"},
                "attendance_number": {"type": "integer"},
                "status": {"type": "string"},
                "created_at": {"type": "string"}
            }
        },
        "FieldHistoryEntry": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "student_id": {"type": "string"},
                "field_name": {"type": "string"},
                "old_value": {"type": "string"},
                "new_value": {"type": "string"},
                "effective_date": {"type": "string"},
                "reason": {"type": "string"},
                "applied": {"type": "boolean"},
                "applied_at": {"type": "string"},
                "created_at": {"type": "string"}
            }
        },
        "StatusInterval": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "student_id": {"type": "string"},
                "status": {"type": "string"},
                "start_date": {"type": "string"},
                "end_date": {"type": "string"},
                "created_at": {"type": "string"}
            }
        },
        "CreateStudentRequest": {
            "type": "object",
            "properties": {
                "s_number": {"type": "string"},
                "legal_name": {"type": "string"},
                "alias_name": {"type": "string"},
                "use_alias_flag": {"type": "boolean"},
                "birth_date": {"type": "string"},
                "gender": {"type": "string"},
                "address": {"type": "string"},
                "grade": {"type": "integer"},
                "class_label": {"type": "string"},
                "attendance_number": {"type": "integer"}
            },
            "required": ["s_number", "legal_name", "birth_date", "grade", "class_label", "attendance_number"]
        },
        "ProposeChangeRequest": {
            "type": "object",
            "properties": {
                "field_name": {"type": "string"},
                "old_value": {"type": "string"},
                "new_value": {"type": "string"},
                "effective_date": {"type": "string"},
                "reason": {"type": "string"}
            },
            "required": ["field_name", "new_value", "effective_date"]
        },
        "ChangeStatusRequest": {
            "type": "object",
            "properties": {
                "status": {"type": "string"},
                "start_date": {"type": "string"}
            },
            "required": ["status"]
        },
        "PromoteRequest": {
            "type": "object",
            "properties": {
                "target_fiscal_year": {"type": "integer"},
                "directives": {
                    "type": "array",
                    "items": {"$ref": "#/definitions/PromotionDirective"}
                }
            },
            "required": ["target_fiscal_year", "directives"]
        },
        "PromotionDirective": {
            "type": "object",
            "properties": {
                "student_id": {"type": "string"},
                "grade": {"type": "integer"},
                "class_label": {"type": "string"},
                "attendance_number": {"type": "integer"}
            },
            "required": ["student_id", "grade", "class_label", "attendance_number"]
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
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
                "pagination": {"$ref": "#/definitions/Pagination"},
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
