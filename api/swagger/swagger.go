package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Mon Ecole Timetable API",
        "description": "Weekly timetables per school, classroom and teacher",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": ["http", "https"],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "tags": [
        {"name": "Auth", "description": "Sessions and credentials"},
        {"name": "Timetable", "description": "Weekly schedule entries"}
    ],
    "parameters": {
        "SchoolHeader": {"name": "x-school-id", "in": "header", "required": true, "type": "string"},
        "YearHeader": {"name": "x-academic-year-id", "in": "header", "type": "string", "description": "Defaults to the school's current academic year"},
        "EntryID": {"name": "id", "in": "path", "required": true, "type": "string"}
    },
    "paths": {
        "/auth/login": {
            "post": {
                "tags": ["Auth"],
                "summary": "Open a session",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/SessionEnvelope"}},
                    "401": {"description": "Invalid credentials", "schema": {"$ref": "#/definitions/APIError"}}
                }
            }
        },
        "/auth/refresh": {
            "post": {
                "tags": ["Auth"],
                "summary": "Rotate a refresh token",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RefreshRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/SessionEnvelope"}},
                    "401": {"description": "Expired, revoked or replayed token", "schema": {"$ref": "#/definitions/APIError"}}
                }
            }
        },
        "/auth/logout": {
            "post": {
                "tags": ["Auth"],
                "summary": "Close the current session",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RefreshRequest"}}
                ],
                "responses": {"204": {"description": "Logged out"}}
            }
        },
        "/auth/change-password": {
            "post": {
                "tags": ["Auth"],
                "summary": "Change password and close every session",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ChangePasswordRequest"}}
                ],
                "responses": {"204": {"description": "Password changed"}}
            }
        },
        "/auth/me": {
            "get": {
                "tags": ["Auth"],
                "summary": "Current user",
                "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/UserEnvelope"}}}
            }
        },
        "/timetable-entries": {
            "get": {
                "tags": ["Timetable"],
                "summary": "List entries",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"$ref": "#/parameters/SchoolHeader"},
                    {"$ref": "#/parameters/YearHeader"},
                    {"name": "classroomId", "in": "query", "type": "string"},
                    {"name": "teacherId", "in": "query", "type": "string"},
                    {"name": "day", "in": "query", "type": "string", "enum": ["MONDAY", "TUESDAY", "WEDNESDAY", "THURSDAY", "FRIDAY", "SATURDAY", "SUNDAY"]},
                    {"name": "academicYearId", "in": "query", "type": "string"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/EntryList"}}}
            },
            "post": {
                "tags": ["Timetable"],
                "summary": "Schedule a session",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"$ref": "#/parameters/SchoolHeader"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateTimetableEntryRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/EntryEnvelope"}},
                    "400": {"description": "Validation error or SCHEDULE_CONFLICT", "schema": {"$ref": "#/definitions/APIError"}},
                    "403": {"description": "Not an administrator of the school", "schema": {"$ref": "#/definitions/APIError"}}
                }
            }
        },
        "/timetable-entries/import": {
            "post": {
                "tags": ["Timetable"],
                "summary": "Import entries from an xlsx workbook",
                "security": [{"BearerAuth": []}],
                "consumes": ["multipart/form-data"],
                "parameters": [
                    {"$ref": "#/parameters/SchoolHeader"},
                    {"name": "file", "in": "formData", "required": true, "type": "file"},
                    {"name": "partialOnError", "in": "query", "type": "boolean", "default": false}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ImportEnvelope"}},
                    "200": {"description": "No row was created", "schema": {"$ref": "#/definitions/ImportEnvelope"}}
                }
            }
        },
        "/timetable-entries/{id}": {
            "get": {
                "tags": ["Timetable"],
                "summary": "Get an entry",
                "security": [{"BearerAuth": []}],
                "parameters": [{"$ref": "#/parameters/SchoolHeader"}, {"$ref": "#/parameters/EntryID"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/EntryEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/APIError"}}
                }
            },
            "patch": {
                "tags": ["Timetable"],
                "summary": "Move or reassign an entry",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"$ref": "#/parameters/SchoolHeader"},
                    {"$ref": "#/parameters/EntryID"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateTimetableEntryRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/EntryEnvelope"}},
                    "400": {"description": "Validation error or SCHEDULE_CONFLICT", "schema": {"$ref": "#/definitions/APIError"}}
                }
            },
            "delete": {
                "tags": ["Timetable"],
                "summary": "Delete an entry",
                "security": [{"BearerAuth": []}],
                "parameters": [{"$ref": "#/parameters/SchoolHeader"}, {"$ref": "#/parameters/EntryID"}],
                "responses": {"204": {"description": "Deleted"}}
            }
        },
        "/classrooms/{id}/timetable": {
            "get": {
                "tags": ["Timetable"],
                "summary": "Weekly timetable of a classroom",
                "security": [{"BearerAuth": []}],
                "parameters": [{"$ref": "#/parameters/SchoolHeader"}, {"$ref": "#/parameters/YearHeader"}, {"$ref": "#/parameters/EntryID"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/WeekEnvelope"}}}
            }
        },
        "/classrooms/{id}/timetable/export": {
            "get": {
                "tags": ["Timetable"],
                "summary": "Download a classroom timetable",
                "security": [{"BearerAuth": []}],
                "produces": ["text/csv", "application/pdf", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"],
                "parameters": [
                    {"$ref": "#/parameters/SchoolHeader"},
                    {"$ref": "#/parameters/YearHeader"},
                    {"$ref": "#/parameters/EntryID"},
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf", "xlsx"], "default": "csv"}
                ],
                "responses": {"200": {"description": "Attachment", "schema": {"type": "file"}}}
            }
        },
        "/teachers/{id}/timetable": {
            "get": {
                "tags": ["Timetable"],
                "summary": "Weekly timetable of a teacher",
                "security": [{"BearerAuth": []}],
                "parameters": [{"$ref": "#/parameters/SchoolHeader"}, {"$ref": "#/parameters/YearHeader"}, {"$ref": "#/parameters/EntryID"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/WeekEnvelope"}}}
            }
        }
    },
    "definitions": {
        "LoginRequest": {
            "type": "object",
            "required": ["email", "password"],
            "properties": {"email": {"type": "string"}, "password": {"type": "string"}}
        },
        "RefreshRequest": {
            "type": "object",
            "required": ["refreshToken"],
            "properties": {"refreshToken": {"type": "string"}}
        },
        "ChangePasswordRequest": {
            "type": "object",
            "required": ["oldPassword", "newPassword"],
            "properties": {"oldPassword": {"type": "string"}, "newPassword": {"type": "string", "minLength": 8}}
        },
        "UserInfo": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "email": {"type": "string"},
                "fullName": {"type": "string"},
                "role": {"type": "string"}
            }
        },
        "LoginResponse": {
            "type": "object",
            "properties": {
                "accessToken": {"type": "string"},
                "refreshToken": {"type": "string"},
                "expiresIn": {"type": "integer"},
                "issuedAt": {"type": "string", "format": "date-time"},
                "user": {"$ref": "#/definitions/UserInfo"}
            }
        },
        "SessionEnvelope": {
            "type": "object",
            "properties": {"session": {"$ref": "#/definitions/LoginResponse"}}
        },
        "UserEnvelope": {
            "type": "object",
            "properties": {"user": {"$ref": "#/definitions/UserInfo"}}
        },
        "CreateTimetableEntryRequest": {
            "type": "object",
            "required": ["classroomId", "academicYearId", "subjectId", "teacherId", "dayOfWeek", "startTime", "endTime"],
            "properties": {
                "classroomId": {"type": "string"},
                "academicYearId": {"type": "string"},
                "subjectId": {"type": "string"},
                "teacherId": {"type": "string"},
                "dayOfWeek": {"type": "string"},
                "startTime": {"type": "string", "description": "HH:MM or ISO-8601 date-time"},
                "endTime": {"type": "string", "description": "HH:MM or ISO-8601 date-time"}
            }
        },
        "UpdateTimetableEntryRequest": {
            "type": "object",
            "properties": {
                "classroomId": {"type": "string"},
                "academicYearId": {"type": "string"},
                "subjectId": {"type": "string"},
                "teacherId": {"type": "string"},
                "dayOfWeek": {"type": "string"},
                "startTime": {"type": "string"},
                "endTime": {"type": "string"}
            }
        },
        "TimetableEntry": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "classroomId": {"type": "string"},
                "classroomName": {"type": "string"},
                "academicYearId": {"type": "string"},
                "subjectId": {"type": "string"},
                "subjectName": {"type": "string"},
                "teacherId": {"type": "string"},
                "teacherName": {"type": "string"},
                "dayOfWeek": {"type": "string"},
                "startTime": {"type": "string"},
                "endTime": {"type": "string"},
                "createdAt": {"type": "string", "format": "date-time"},
                "updatedAt": {"type": "string", "format": "date-time"}
            }
        },
        "EntryEnvelope": {
            "type": "object",
            "properties": {"timetableEntry": {"$ref": "#/definitions/TimetableEntry"}}
        },
        "EntryList": {
            "type": "object",
            "properties": {"timetableEntries": {"type": "array", "items": {"$ref": "#/definitions/TimetableEntry"}}}
        },
        "WeekEnvelope": {
            "type": "object",
            "properties": {
                "timetable": {
                    "type": "object",
                    "additionalProperties": {"type": "array", "items": {"$ref": "#/definitions/TimetableEntry"}}
                }
            }
        },
        "ImportResult": {
            "type": "object",
            "properties": {
                "created": {"type": "array", "items": {"$ref": "#/definitions/TimetableEntry"}},
                "failures": {
                    "type": "array",
                    "items": {"type": "object", "properties": {"row": {"type": "integer"}, "error": {"type": "string"}}}
                }
            }
        },
        "ImportEnvelope": {
            "type": "object",
            "properties": {"timetableImport": {"$ref": "#/definitions/ImportResult"}}
        },
        "APIError": {
            "type": "object",
            "properties": {"error": {"type": "string"}}
        }
    }
}`

type swaggerDoc struct{}

func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
