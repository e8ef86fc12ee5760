package constant

// Sidebar and main panel copy.
const (
	SidebarTitle = "LangGraph RAG Chatbot"
	MainTitle    = "Multi Utility Chatbot"

	NoDocumentNotice      = "No PDF indexed yet."
	NoPastThreadsNotice   = "No past conversations yet."
	DocumentIndexedStatus = "✅ PDF indexed"

	DocumentInUseFormat    = "Using `%s` (%d chunks from %d pages)"
	AlreadyProcessedFormat = "`%s` already processed for this chat."
	DocumentCaptionFormat  = "Document indexed: %s (chunks: %d, pages: %d)"
)

const (
	UploadStatusIndexed   = "indexed"
	UploadStatusProcessed = "already_processed"

	NoticeSuccess = "success"
	NoticeInfo    = "info"
)

// Stream frame types shared by SSE and websocket transports.
const (
	FrameDelta = "delta"
	FrameDone  = "done"
	FrameError = "error"
)
