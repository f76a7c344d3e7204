/*
Package atomicfile replaces a file as a whole or not at all.

Replacing a file by re-writing it in place loses data if we crash half
way. Instead we write the new content to a temporary file next to the
destination and rename it over the destination once everything has been
written and synced:

	func replaceFile(path string, data []byte) error {
		w, err := atomicfile.New(path)
		if err != nil {
			return err
		}
		// removes the temporary file on early return
		defer w.RemoveIfNotClosed()

		_, err = w.Write(data)
		if err != nil {
			return err
		}
		return w.Close()
	}

The temporary file is always path + TmpSuffix. NewExclusive refuses
to start if that file already exists.
*/
package atomicfile
