package logger

// ToolName is the fixed name for this tool, used for log file names and the
// cleanup glob.
const ToolName = "setupwiz"
