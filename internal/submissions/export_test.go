package submissions

var ScanSubmission = scanSubmission
