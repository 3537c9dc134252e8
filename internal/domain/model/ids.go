package model

import (
	"strings"

	"github.com/google/uuid"
)

// idNamespace seeds the name-based UUIDs used for record keys so identical
// inputs always yield identical ids.
var idNamespace = uuid.MustParse("6f1c2a7e-4b0d-5e8a-9c3f-2d7b1e0a9f44")

func nameID(parts ...string) string {
	return uuid.NewSHA1(idNamespace, []byte(strings.Join(parts, "\x1f"))).String()
}

// EvaluationID is the key of the record given by giverID about receiverID in
// the cycle. Self-assessments use the same id for both parties.
func EvaluationID(cycleID, giverID, receiverID string) string {
	return nameID("evaluation", cycleID, giverID, receiverID)
}

// ManagerPairID is the pair id shared by the two directional records of a
// manager/report edge.
func ManagerPairID(cycleID, managerID, reportID string) string {
	return nameID("pair", "manager", cycleID, managerID, reportID)
}

// PeerPairID is the pair id of a one-directional peer assessment.
func PeerPairID(cycleID, assessorID, subjectID string) string {
	return nameID("pair", "peer", cycleID, assessorID, subjectID)
}

// PublishedKey is the write-once key of a published record.
func PublishedKey(pairID, subjectID string) string {
	return pairID + ":" + subjectID
}
