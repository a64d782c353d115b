// Package config provides configuration loading, merging, and validation
// facilities for the application.
//
// Configuration is assembled from multiple sources in the following priority
// order (an earlier source keeps a field it set; later sources only fill
// what is still empty):
//  1. Environment variables
//  2. Command-line flags
//  3. JSON config file
//
// The main entry point is [GetConfig]. Persistence keys for all durable
// engine state are derived from the zone name exactly once via [NewKeys].
package config
