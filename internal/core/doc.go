// Package core provides the validation and loading logic for healthcare
// encounter CSV files.
//
// This package holds all domain logic independent of the CLI or HTTP layer.
// The same [Pipeline] backs the validate, prepare, and load commands as well as
// the ingest API; only the sinks handed to it differ.
//
// # Pipeline
//
// A run moves through three phases:
//
//  1. [PhaseReading]: the header is checked against [EncounterSchema]. A missing
//     required column is a [SchemaError] and aborts the run before any row is read.
//  2. [PhaseValidating]: each record is normalized field by field with the
//     [RowValidator], then checked for duplicates by natural key with a
//     [DuplicateDetector]. Both happen strictly in file order.
//  3. [PhasePartitioned]: every record is either accepted (and handed to the
//     [DocumentSink] in batches) or rejected (and handed to the [ReportSink]).
//
// Batches exist to bound memory. Duplicate state spans the whole stream, so
// batch size never changes which records are accepted.
//
// # Reason Codes
//
// Rejected records carry a [ReasonSet]. Codes are emitted in a fixed order:
//
//	MALFORMED  wrong column count or unparsable CSV row
//	AGE        Age is not a base-10 integer
//	ROOM       Room Number is not a base-10 integer
//	AMOUNT     Billing Amount is not a decimal number
//	ADM        Date of Admission is not a YYYY-MM-DD date
//	DIS        Discharge Date is neither empty nor a YYYY-MM-DD date
//	GENDER     Gender is not Male or Female
//	BLOOD      Blood Type is not one of A+ A- B+ B- AB+ AB- O+ O-
//	CRITICAL   Name, Date of Admission or Hospital is blank
//	DUPLICATE  natural key already seen earlier in the file
//	UNKNOWN    rejected without any of the above
//
// # Error Handling
//
// Only schema failures stop a run. Field failures become reason codes, and sink
// failures are collected per batch as [SinkWriteError] values; batches that were
// already written are not rolled back. [MapError] turns any of these into a
// [UserMessage] with a support code.
package core
