// Package model declares typed models over a column store: attributes with
// wire codecs and write policies, immutable schemas, and live instances that
// track which fields changed.
//
// # Declaring a model
//
//	var Invoice = model.MustRegister(model.Definition{
//	    Name: "invoice",
//	    Fields: []model.Field{
//	        model.F("id", model.UUID(model.With(model.RowKey))),
//	        model.F("customer_id", model.ForeignKey("customer")),
//	        model.F("number", model.Int64(model.With(model.Indexed))),
//	        model.F("total", model.Decimal(12, 2)),
//	    },
//	    PreSave: model.StampAudit,
//	})
//
// # Write policy
//
// Set validates the value against the attribute's domain type, then enforces
// its policy:
//
//   - [ReadOnly] attributes accept a value only while New builds the instance
//   - [WriteOnce] attributes accept values only while the instance is new
//   - [Required] attributes reject null and are checked again at save time
//
// Every accepted value marks the field dirty. Persisting is done by the store
// package.
//
// # Errors
//
// Failures tied to a field are *[FieldError] values. Use errors.Is with
// [ErrTypeMismatch], [ErrReadOnly], [ErrWriteOnce], [ErrRequired] or
// [ErrUnknownAttribute]. Invalid definitions fail with [ErrSchema].
package model
