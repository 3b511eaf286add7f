package run

func SetStatus(status Status) UpdateSetter {
	return func(r *Run) error {
		if !status.IsValid() {
			return ErrInvalidStatus
		}
		r.Status = status
		return nil
	}
}

func SetReportDir(dir string) UpdateSetter {
	return func(r *Run) error {
		r.ReportDir = dir
		return nil
	}
}

func SetSummary(summary JSONMap) UpdateSetter {
	return func(r *Run) error {
		r.Summary = summary
		return nil
	}
}

func SetError(msg string) UpdateSetter {
	return func(r *Run) error {
		r.Error = msg
		return nil
	}
}
