package postgres

var schoolDDL = []string{
	`CREATE TABLE IF NOT EXISTS "departments" (
  "id"   BIGSERIAL PRIMARY KEY,
  "name" VARCHAR(100) NOT NULL UNIQUE
)`,
	`CREATE TABLE IF NOT EXISTS "students" (
  "id"           BIGINT PRIMARY KEY,
  "first_name"   VARCHAR(50) NOT NULL,
  "last_name"    VARCHAR(50) NOT NULL,
  "email"        VARCHAR(100) NOT NULL,
  "dept_id"      BIGINT NOT NULL REFERENCES "departments" ("id"),
  "joining_date" DATE NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS "subjects" (
  "id"      BIGSERIAL PRIMARY KEY,
  "name"    VARCHAR(100) NOT NULL UNIQUE,
  "dept_id" BIGINT NOT NULL REFERENCES "departments" ("id")
)`,
	`CREATE TABLE IF NOT EXISTS "marks" (
  "student_id" BIGINT NOT NULL REFERENCES "students" ("id"),
  "subject_id" BIGINT NOT NULL REFERENCES "subjects" ("id"),
  "score"      NUMERIC(5,2) NOT NULL,
  PRIMARY KEY ("student_id", "subject_id")
)`,
	`CREATE TABLE IF NOT EXISTS "grade" (
  "id"               BIGINT PRIMARY KEY,
  "code"             VARCHAR(10) NOT NULL UNIQUE,
  "label"            VARCHAR(50) NOT NULL,
  "percentage_range" VARCHAR(20) NOT NULL,
  "gpa_equivalent"   NUMERIC(3,2) NOT NULL
)`,
}

var academicsDDL = []string{
	`CREATE TABLE IF NOT EXISTS "student_academics" (
  "id"           SERIAL PRIMARY KEY,
  "first_name"   VARCHAR(50) NOT NULL,
  "last_name"    VARCHAR(50) NOT NULL,
  "email"        VARCHAR(100) NOT NULL UNIQUE,
  "department"   VARCHAR(100) NOT NULL,
  "joining_date" DATE NOT NULL,
  "gpa"          NUMERIC(3,2) NOT NULL CHECK ("gpa" BETWEEN 0 AND 4)
)`,
}
