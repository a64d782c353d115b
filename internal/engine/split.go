package engine

import "github.com/MKhiriev/cloudsync/models"

// pushBatch is one modify submission: records to save and identifiers
// to delete.
type pushBatch struct {
	save []models.RemoteRecord
	del  []models.RecordID
}

func (b pushBatch) size() int { return len(b.save) + len(b.del) }

// ids returns every identifier the batch touches, saves first.
func (b pushBatch) ids() []models.RecordID {
	out := make([]models.RecordID, 0, b.size())
	for _, rec := range b.save {
		out = append(out, rec.ID)
	}
	return append(out, b.del...)
}

// add appends the original intent for id, looked up in the submitting
// batch's save and delete indexes.
func (b pushBatch) add(id models.RecordID, saveByID map[models.RecordID]models.RemoteRecord, delSet map[models.RecordID]struct{}) pushBatch {
	if rec, ok := saveByID[id]; ok {
		b.save = append(b.save, rec)
		return b
	}
	if _, ok := delSet[id]; ok {
		b.del = append(b.del, id)
	}
	return b
}

// split halves the batch at the record-count midpoint, counting saves
// and deletes together (saves ordered first). A batch of size one is
// never split — the caller surfaces the oversized failure in that case.
func (b pushBatch) split() (pushBatch, pushBatch) {
	mid := b.size() / 2

	if mid <= len(b.save) {
		return pushBatch{save: b.save[:mid]},
			pushBatch{save: b.save[mid:], del: b.del}
	}
	cut := mid - len(b.save)
	return pushBatch{save: b.save, del: b.del[:cut]},
		pushBatch{del: b.del[cut:]}
}
