// Package lifecycle migrates staged checkpoint exports into durable storage
// and retires old durable exports.
//
// Jobs write Hugging Face exports into the staging directory under their own
// job name. Once that job is no longer owned in the queue, Promote moves the
// export to <storage_dir>/<model>_it<iteration>, or deletes it when an export
// for the same iteration already arrived. Retire then keeps only the newest
// K durable exports per configured model. Both passes are best effort: a
// failure on one export is recorded and the rest proceed.
package lifecycle
