// Package models contains GORM persistence models that map to database tables.
// They are kept apart from domain aggregates so the domain stays free of ORM tags;
// each model provides FromDomain and ToDomain mappers used by the repositories.
package models
