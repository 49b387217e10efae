package common

import (
	"github.com/google/uuid"
)

// Entity ID prefixes. IDs are formatted "<prefix>_<uuid>" so a bare ID is
// self-describing in logs and task records.
const (
	PrefixDocument  = "doc"
	PrefixVersion   = "ver"
	PrefixSpan      = "span"
	PrefixChunk     = "chk"
	PrefixClaim     = "clm"
	PrefixMetric    = "met"
	PrefixConstraint = "con"
	PrefixRisk      = "rsk"
	PrefixConflict  = "cfl"
	PrefixQuestion  = "oq"
	PrefixRun       = "run"
	PrefixJob       = "job"
	PrefixDeletion  = "del"
	PrefixTenant    = "ten"
	PrefixAPIKey    = "key"
	PrefixProject   = "prj"
	PrefixFolder    = "fld"
	PrefixPack      = "pack"
	PrefixAudit     = "aud"
)

// NewID generates a unique ID with the given prefix
func NewID(prefix string) string {
	return prefix + "_" + uuid.New().String()
}
