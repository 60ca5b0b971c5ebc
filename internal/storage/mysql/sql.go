package mysql

// One collection per resource kind; the run generation drives the
// replace semantics (upsert under the new generation, then drop rows
// any older generation left behind).
const upsertDocumentsPrefix = `
INSERT INTO sync_documents
  (kind, external_id, doc, generation)
VALUES `

const upsertDocumentsOnDup = `
ON DUPLICATE KEY UPDATE
  doc        = VALUES(doc),
  generation = VALUES(generation),
  synced_at  = CURRENT_TIMESTAMP
`

const deleteStaleSQL = `
DELETE FROM sync_documents WHERE kind = ? AND generation < ?
`

const insertRunSQL = `
INSERT INTO sync_runs (run_id, run_at, summary)
VALUES (?, ?, ?)
ON DUPLICATE KEY UPDATE
  run_at  = VALUES(run_at),
  summary = VALUES(summary)
`

// -----------------------------------------------------------------------------
// READ QUERIES
// -----------------------------------------------------------------------------

const selectCollectionSQL = `
SELECT external_id, doc
FROM sync_documents
WHERE kind = ?
ORDER BY external_id
LIMIT ?
`

const countsSQL = `
SELECT kind, COUNT(*)
FROM sync_documents
GROUP BY kind
`
