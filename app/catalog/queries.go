package catalog

const DefaultEndpoint = "https://graphql.anilist.co"

const searchQuery = `
query ($search: String, $type: MediaType) {
  Page(page: 1, perPage: 10) {
    media(search: $search, type: $type, sort: SEARCH_MATCH) {
      id
      type
      title { romaji english }
      coverImage { large }
    }
  }
}`

const detailsQuery = `
query ($id: Int) {
  Media(id: $id) {
    id
    type
    title { romaji english }
    coverImage { extraLarge }
    averageScore
    genres
    description(asHtml: false)
    episodes
    chapters
    volumes
    characters(sort: ROLE, perPage: 5) {
      nodes { name { full } }
    }
  }
}`

const totalsQuery = `
query ($id: Int) {
  Media(id: $id) {
    id
    type
    episodes
    chapters
    volumes
  }
}`
