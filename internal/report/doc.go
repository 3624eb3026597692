// Package report renders collected builder reports as a table, JSON or YAML.
package report
