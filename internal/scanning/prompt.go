package scanning

// DefaultTaskPrompt asks a general vision model for the same nested layout a
// CORD-trained document model emits, so one resolver table serves both.
const DefaultTaskPrompt = `You are analyzing a receipt or invoice document. Carefully read all text in the image and describe it as JSON using the following layout:

{
  "menu": [
    {"nm": "Store or business name"},
    {"nm": "Item name", "cnt": "1", "price": "3.50"}
  ],
  "total": {"total_price": "12.34"},
  "paymentinfo": {"price": "12.34"},
  "meta": {"date": "YYYY-MM-DD"}
}

Rules:
- The FIRST "menu" entry is the merchant header: only "nm", with no "cnt" and no "price".
- Every purchased item is a later "menu" entry with "nm", "cnt" and "price".
- "total.total_price" is the final total, grand total, or amount due, copied as printed.
- Use "paymentinfo.price" only when the amount paid is printed separately from the total.
- "meta.date" is the transaction date in YYYY-MM-DD format.
- Omit any node you cannot find. Do not invent values.
- Return ONLY the JSON object. Do not include any text before or after it.
- Do not use markdown code blocks`
